//go:build ignore

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-caliper/internal/oracle"
	"github.com/23skdu/longbow-caliper/internal/vectors"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	base := "http://localhost:8080"
	if len(os.Args) > 1 {
		base = os.Args[1]
	}

	log.Info().Str("base", base).Msg("Connecting to Caliper Server")

	// Retry connection loop
	var err error
	for i := 0; i < 10; i++ {
		var resp *http.Response
		resp, err = http.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
			err = fmt.Errorf("health returned %d", resp.StatusCode)
		}
		log.Warn().Err(err).Msg("Health check failed, retrying...")
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Server unreachable after retries")
	}

	// Decompose a few values over CBOR
	values := []float64{1.0, -2.5, 65504}
	body, _ := cbor.Marshal(values)

	start := time.Now()
	resp, err := http.Post(base+"/decompose", "application/cbor", bytes.NewReader(body))
	if err != nil {
		log.Fatal().Err(err).Msg("Decompose failed")
	}

	var decomposed []vectors.EncodeVector32
	if err := cbor.NewDecoder(resp.Body).Decode(&decomposed); err != nil {
		log.Fatal().Err(err).Msg("Failed to decode decompose response")
	}
	resp.Body.Close()

	if len(decomposed) != len(values) {
		log.Fatal().Int("expected", len(values)).Int("got", len(decomposed)).Msg("Count mismatch")
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("Decompose round trip")

	// Fetch the full suite and verify it locally
	resp, err = http.Get(base + "/vectors?format=json")
	if err != nil {
		log.Fatal().Err(err).Msg("Vectors fetch failed")
	}

	var suite vectors.Suite
	if err := json.NewDecoder(resp.Body).Decode(&suite); err != nil {
		log.Fatal().Err(err).Msg("Failed to decode suite")
	}
	resp.Body.Close()

	report, err := oracle.Verify(suite, oracle.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Served suite failed verification")
	}
	log.Info().Int("checked", report.Checked()).Msg("Served suite verified")

	fmt.Println("VERIFICATION PASSED")
}
