package internal

import (
	"context"

	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
)

// binance codes for rejected credentials or signatures; retrying cannot fix them
var binanceAuthCodes = map[int64]struct{}{
	-1002: {}, // unauthorized
	-1022: {}, // invalid signature
	-2014: {}, // api key format invalid
	-2015: {}, // invalid api key, ip or permissions
}

// Retryable reports whether an exchange call may succeed when repeated.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if _, ok := binanceAuthCodes[apiErr.Code]; ok {
			return false
		}
	}
	return true
}
