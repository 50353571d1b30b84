package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/stride/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DailyGoal, convey.ShouldEqual, 10000)
				convey.So(cfg.DistanceProfile, convey.ShouldEqual, "sensor")
				convey.So(cfg.Simulate, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("STRIDE_ADDR", ":8080")
			_ = os.Setenv("STRIDE_DAILY_GOAL", "8000")
			_ = os.Setenv("STRIDE_SIMULATION_PROBABILITY", "0.5")
			_ = os.Setenv("STRIDE_SIMULATE", "true")
			_ = os.Setenv("STRIDE_DISTANCE_PROFILE", "legacy")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DailyGoal, convey.ShouldEqual, 8000)
				convey.So(cfg.SimulationProbability, convey.ShouldEqual, 0.5)
				convey.So(cfg.Simulate, convey.ShouldBeTrue)
				convey.So(cfg.DistanceProfile, convey.ShouldEqual, "legacy")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
daily_goal: 12000
tick_interval_ms: 500
locale: de
redis_addr: "localhost:6379"
`)
			_ = os.Setenv("STRIDE_CONFIG", tmpFile)
			_ = os.Setenv("STRIDE_DAILY_GOAL", "15000")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DailyGoal, convey.ShouldEqual, 15000)
				convey.So(cfg.TickIntervalMS, convey.ShouldEqual, 500)
				convey.So(cfg.Locale, convey.ShouldEqual, "de")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "localhost:6379")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("STRIDE_CONFIG", "/nonexistent/stride.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should fail to load", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a loaded value is invalid", func() {
			_ = os.Setenv("STRIDE_SIMULATION_PROBABILITY", "2")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"STRIDE_CONFIG",
		"STRIDE_ADDR",
		"STRIDE_DAILY_GOAL",
		"STRIDE_SIMULATION_PROBABILITY",
		"STRIDE_SIMULATE",
		"STRIDE_DISTANCE_PROFILE",
	} {
		_ = os.Unsetenv(key)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "stride-config-*.yaml")
	if err != nil {
		t.Fatalf("create temp config: %v", err)
	}
	defer func() { _ = tmpFile.Close() }()

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return tmpFile.Name()
}
