package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/config"
	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/display"
	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/monitor"
	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/publisher"
	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/seismometer"
	"github.com/ichigozero/home-iot/rpi/mpu6050/go/internal/sensor"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gobot.io/x/gobot"
	"gobot.io/x/gobot/drivers/i2c"
	"gobot.io/x/gobot/platforms/raspi"
)

func main() {
	app := cli.NewApp()
	app.Name = "seismo"
	app.Usage = "measure the JMA seismic intensity with an MPU6050 on a Raspberry Pi"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "path to the YAML configuration",
		},
		cli.IntFlag{
			Name:  "dlpf",
			Value: -1,
			Usage: "override the MPU6050 digital low-pass filter mode (0-6)",
		},
		cli.BoolFlag{
			Name:  "console",
			Usage: "log the screens instead of driving the OLED",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// A .env file is optional, variables from the environment win.
	godotenv.Load()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if dlpf := c.Int("dlpf"); dlpf >= 0 {
		cfg.Sensor.DLPF = dlpf
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	adaptor := raspi.NewAdaptor()
	mpu := sensor.NewMPU6050(
		adaptor,
		i2c.WithBus(cfg.Sensor.Bus),
		i2c.WithAddress(cfg.Sensor.Address),
		sensor.WithDLPF(cfg.Sensor.DLPF),
	)
	devices := []gobot.Device{mpu}

	var screen monitor.Display = display.NewConsole(logger)
	if cfg.Display.Enabled && !c.Bool("console") {
		oled := display.NewOLED(
			adaptor,
			i2c.WithBus(cfg.Display.Bus),
			i2c.WithAddress(cfg.Display.Address),
		)
		devices = append(devices, oled.Driver())
		screen = oled
	}

	mon := monitor.New(monitor.Config{
		TriggerGal:    cfg.Monitor.TriggerGal,
		ExitIntensity: cfg.Monitor.ExitIntensity,
		MinEvent:      cfg.Monitor.GetMinEvent(),
		MaxEvent:      cfg.Monitor.GetMaxEvent(),
		Hold:          cfg.Monitor.GetHold(),
		RecordDir:     cfg.Monitor.RecordDir,
	}, screen, logger)

	sinks := []seismometer.Sink{mon}

	if cfg.Telemetry.Transport != "" {
		pub, err := publisher.New(publisher.Config{
			Transport: cfg.Telemetry.Transport,
			Broker:    cfg.Telemetry.Broker,
			ClientID:  cfg.Telemetry.ClientID,
			Topic:     cfg.Telemetry.Topic,
			Username:  cfg.Telemetry.Username,
			Password:  cfg.Telemetry.Password,
		}, logger)
		if err != nil {
			logger.WithError(err).Warn("telemetry disabled, broker unreachable")
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
		}
	}

	eval := seismometer.NewEvaluator(cfg.Sampling.GetTarget(), cfg.Sampling.MinFill)

	sched, err := seismometer.NewScheduler(seismometer.SchedulerConfig{
		Period:   cfg.Sampling.GetPeriod(),
		Window:   cfg.Sampling.GetWindow(),
		Evaluate: cfg.Sampling.GetEvaluate(),
	}, mpu, eval, logger, sinks...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		logger.WithField("signal", s.String()).Info("stopping")
		cancel()
	}()

	robot := gobot.NewRobot("SeismoBot",
		[]gobot.Connection{adaptor},
		devices,
	)

	// The sampling loop drives the lifetime, not gobot's signal trap.
	if err := robot.Start(false); err != nil {
		return err
	}
	defer robot.Stop()

	if cfg.Sensor.Calibrate {
		logger.Info("calibrating accelerometer offsets, keep the device still")
		if err := mpu.Calibrate(cfg.Sensor.Gravity); err != nil {
			return err
		}
	}

	logger.WithFields(logrus.Fields{
		"period": cfg.Sampling.GetPeriod().String(),
		"window": cfg.Sampling.GetWindow().String(),
	}).Info("sampling started")

	return sched.Run(ctx)
}

func newLogger(cfg config.Log) (*logrus.Logger, func(), error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	closeLog := func() {}
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("log file: %w", err)
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, file))
		closeLog = func() { file.Close() }
	}

	return logger, closeLog, nil
}
