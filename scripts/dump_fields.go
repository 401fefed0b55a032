//go:build ignore

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/23skdu/longbow-caliper/internal/ieee754"
	"github.com/23skdu/longbow-caliper/internal/vectors"
)

type FieldDump struct {
	Token  string               `json:"token"`
	Single vectors.Components32 `json:"fp32"`
	Half   vectors.Components16 `json:"fp16"`
}

func main() {
	tokens := os.Args[1:]
	if len(tokens) == 0 {
		tokens = []string{
			"0",
			"-0",
			"1",
			"0.5",
			"65504",
			"65520", // truncates back down to 65504
			"1e-45",
			"0x1p-14",
			"NaN",
			"-Infinity",
		}
	}

	var out []FieldDump
	for _, tok := range tokens {
		v, err := vectors.ParseValue(tok)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot parse %q: %v\n", tok, err)
			os.Exit(1)
		}
		out = append(out, FieldDump{
			Token:  tok,
			Single: vectors.NewComponents32(ieee754.Decompose32(float32(v))),
			Half:   vectors.NewComponents16(ieee754.Narrow16(float32(v))),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		os.Exit(1)
	}
}
