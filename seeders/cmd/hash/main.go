// Печатает bcrypt-хеш пароля для ручного заведения оператора.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("использование: %s <пароль>", os.Args[0])
	}

	hashedPassword, err := utils.HashPassword(os.Args[1])
	if err != nil {
		log.Fatalf("Ошибка при генерации хеша: %v", err)
	}
	fmt.Println(hashedPassword)
}
