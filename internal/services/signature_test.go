package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyShopifySignature(t *testing.T) {
	body := []byte(`{"id":1001,"order_number":1234}`)
	proof := SignShopifyBody("secret", body)

	testCases := []struct {
		name   string
		secret string
		body   []byte
		proof  string
		want   bool
	}{
		{name: "верная подпись", secret: "secret", body: body, proof: proof, want: true},
		{name: "пробелы вокруг заголовка", secret: "secret", body: body, proof: "  " + proof + "\n", want: true},
		{name: "изменённое тело", secret: "secret", body: []byte(`{"id":1002,"order_number":1234}`), proof: proof, want: false},
		{name: "чужой секрет", secret: "other", body: body, proof: proof, want: false},
		{name: "секрет не задан", secret: "", body: body, proof: proof, want: false},
		{name: "нет заголовка", secret: "secret", body: body, proof: "", want: false},
		{name: "не base64", secret: "secret", body: body, proof: "%%%not-base64%%%", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, VerifyShopifySignature(tc.secret, tc.body, tc.proof))
		})
	}
}
