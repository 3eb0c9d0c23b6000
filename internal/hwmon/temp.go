package hwmon

import (
	"context"
	"errors"
	"io/fs"
	"strconv"

	"hddfancontrol/internal/hw"
)

// TempInput reads a temp*_input attribute in millidegrees Celsius.
type TempInput struct {
	id   string
	path string
}

// NewTempInput returns a reader for path.
func NewTempInput(id, path string) *TempInput {
	return &TempInput{id: id, path: path}
}

func (t *TempInput) Path() string { return t.path }

func (t *TempInput) ReadTemp(ctx context.Context) (hw.Temp, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	milli, err := readInt(t.path)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			return 0, hw.Wrap(hw.ErrParse, t.id, "read "+t.path, err)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return 0, hw.Wrap(hw.ErrUnreadable, t.id, "sensor disappeared", err)
		}
		return 0, hw.Wrap(hw.ErrUnreadable, t.id, "read "+t.path, err)
	}
	return hw.Millidegrees(milli), nil
}
