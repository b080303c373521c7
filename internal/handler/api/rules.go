package api

import (
	"StockPulse/internal/repository"
	xhttp "StockPulse/pkg/http"
	"StockPulse/pkg/util"
)

func init() {
	xhttp.RegisterRule("itemid", "%s must be 1-128 letters, digits, '.', '_' or '-'", func(s string) bool {
		return repository.ValidateItemID(s) == nil
	})
	xhttp.RegisterRule("salesdate", "%s must be a date such as 2024-01-31", func(s string) bool {
		_, ok := util.ParseTime(s)
		return ok
	})
}
