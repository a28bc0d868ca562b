package telemetry

import (
	"context"
	"testing"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Config{}, "test")
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	c := Config{SampleRatio: 1.5}
	if err := c.Validate(); err == nil {
		t.Error("expected error for ratio > 1")
	}
	c = Config{}
	c.Defaults()
	if c.ServiceName != "academyd" || c.SampleRatio != 1 {
		t.Errorf("defaults = %+v", c)
	}
}
