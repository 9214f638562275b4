// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"os"
	"reflect"
)

// JSONOutput adds --json to a params struct. Read commands embed it
// and hand their result to EmitJSON before rendering a table:
//
//	type resourcesParams struct {
//	    cli.ConfigOptions
//	    cli.JSONOutput
//	}
//
//	if done, err := params.EmitJSON(rows); done {
//	    return err
//	}
type JSONOutput struct {
	OutputJSON bool `json:"-" flag:"json" desc:"output as JSON"`
}

// EmitJSON writes result to stdout when --json is set and reports
// whether it did. A nil slice is written as [] so scripts reading
// "recordapi list --json" never see null.
func (j *JSONOutput) EmitJSON(result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	return true, encodeJSON(os.Stdout, result)
}

func encodeJSON(w io.Writer, value any) error {
	if v := reflect.ValueOf(value); v.Kind() == reflect.Slice && v.IsNil() {
		value = reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
