package actions

import "context"

// ManualStart returns its preconfigured input, or an empty object when
// none was configured, so downstream references always have a handle to
// resolve against.
type ManualStart struct {
	Input interface{} `json:"input"`
}

func (m ManualStart) Execute(context.Context, *ExecContext) (interface{}, error) {
	if m.Input == nil {
		return map[string]interface{}{}, nil
	}
	return m.Input, nil
}
