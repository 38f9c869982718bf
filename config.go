// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"github.com/kelseyhightower/envconfig"
)

// envDefaults holds flag defaults that can be set in the environment
// as HARMONIZE_<NAME>.
type envDefaults struct {
	Samtools     string `envconfig:"SAMTOOLS" default:"samtools"`
	Liftover     string `envconfig:"LIFTOVER" default:"liftOver"`
	SheetsAPIKey string `envconfig:"SHEETS_API_KEY"`
	Threads      int    `envconfig:"THREADS"`
	ChunkSize    int    `envconfig:"CHUNK_SIZE" default:"2000"`
	MaxRetries   int    `envconfig:"MAX_RETRIES" default:"10"`
	RuntimeImage string `envconfig:"RUNTIME_IMAGE" default:"harmonize-runtime"`
}

func loadEnvDefaults() (envDefaults, error) {
	var env envDefaults
	err := envconfig.Process("harmonize", &env)
	return env, err
}
