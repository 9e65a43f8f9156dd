package lease

import "errors"

// Ошибки lease-координации.
var (
	// ErrLeaseLost — lease истёк или перехвачен другим worker'ом.
	// Держатель обязан прекратить любые записи по этому schedule
	// и оставить реконсиляцию recovery manager'у.
	ErrLeaseLost = errors.New("lease lost")
)
