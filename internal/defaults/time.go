package defaults

import (
	"fmt"
	"time"

	"github.com/karupanerura/series-formula/internal/types"
)

var Time = aggregateFunctionsToMap(
	types.MustNewFunction("year", []types.Argument{
		{Name: "d"},
	}, func(d types.Date) (int64, error) {
		return int64(d.Year), nil
	}),
	types.MustNewFunction("month", []types.Argument{
		{Name: "d"},
	}, func(d types.Date) (int64, error) {
		return int64(d.Month), nil
	}),
	types.MustNewFunction("day", []types.Argument{
		{Name: "d"},
	}, func(d types.Date) (int64, error) {
		return int64(d.Day), nil
	}),
	types.MustNewFunction("addmonths", []types.Argument{
		{Name: "d"},
		{Name: "months"},
	}, func(d types.Date, months int64) (types.Date, error) {
		return d.AddMonths(int(months)), nil
	}),
	types.MustNewFunction("date", []types.Argument{
		{Name: "year"},
		{Name: "month"},
		{Name: "day", Default: int64(1)},
	}, func(year, month, day int64) (types.Date, error) {
		d, err := types.NewDate(int(year), time.Month(month), int(day))
		if err != nil {
			return types.Date{}, &types.Error{
				Tag:    types.ValueErrorTag,
				Offset: types.NoOffset,
				Err:    fmt.Errorf("date(%d, %d, %d): %w", year, month, day, err),
			}
		}
		return d, nil
	}),
)
