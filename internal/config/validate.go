// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"encoding/json"

	"github.com/adsbnet/mlat-tracker/pkg/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate compiles schema and checks instance against it, aborting the
// process on a violation: a malformed config is a startup-time fatal
// error, not a runtime one.
func Validate(schema string, instance json.RawMessage) {
	sch, err := jsonschema.CompileString("schema.json", schema)
	if err != nil {
		log.Fatalf("%#v", err)
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		log.Fatal(err)
	}

	if err := sch.Validate(v); err != nil {
		log.Fatalf("%#v", err)
	}
}
