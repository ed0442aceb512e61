package main

import (
	"testing"
	"time"
)

func baseConfig() *appConfig {
	return &appConfig{
		backend:         "serial",
		serialDev:       "/dev/null",
		baud:            115200,
		serialReadTO:    10 * time.Millisecond,
		txMTU:           64,
		logFormat:       "text",
		logLevel:        "info",
		linkEventBuffer: 16,
		linkEventPolicy: "drop",
	}
}

func TestConfigValidateOK(t *testing.T) {
	if err := baseConfig().validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badBackend", func(c *appConfig) { c.backend = "x" }},
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badPolicy", func(c *appConfig) { c.linkEventPolicy = "x" }},
		{"badTxMTU", func(c *appConfig) { c.txMTU = 0 }},
		{"badBaud", func(c *appConfig) { c.baud = 0 }},
		{"badSerialTO", func(c *appConfig) { c.serialReadTO = 0 }},
		{"badLinkEventBuffer", func(c *appConfig) { c.linkEventBuffer = 0 }},
	}
	for _, tc := range tests {
		c := baseConfig()
		tc.mod(c)
		if err := c.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
