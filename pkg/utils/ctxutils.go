// pkg/utils/auth_helpers.go

package utils

import (
	"context"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/contextkeys"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
)

func GetOperatorIDFromCtx(ctx context.Context) (int64, error) {
	operatorID, ok := ctx.Value(contextkeys.OperatorIDKey).(int64)
	if !ok || operatorID == 0 {
		return 0, apperrors.ErrOperatorNotFoundInContext
	}
	return operatorID, nil
}

func GetOperatorNameFromCtx(ctx context.Context) string {
	name, _ := ctx.Value(contextkeys.OperatorNameKey).(string)
	return name
}

func GetRequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(contextkeys.RequestIDKey).(string)
	return id
}
