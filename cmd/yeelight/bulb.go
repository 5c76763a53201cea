package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lanterndev/goyeelight"
	"github.com/lanterndev/goyeelight/discovery"
	"github.com/lanterndev/goyeelight/flow"
)

var (
	cmdDiscover = &cobra.Command{
		Use:   `discover`,
		Short: `search the local network for devices`,
		Run:   discoverDevices,
	}

	cmdBulb = &cobra.Command{
		Use:   `bulb`,
		Short: `interact with a single device`,
		Run:   usage,
	}

	cmdBulbOn = &cobra.Command{
		Use:   `on <ip>`,
		Short: `turn the light on`,
		Run: withBulb(func(b *goyeelight.Bulb, args []string) error {
			return b.TurnOn()
		}),
	}

	cmdBulbOff = &cobra.Command{
		Use:   `off <ip>`,
		Short: `turn the light off`,
		Run: withBulb(func(b *goyeelight.Bulb, args []string) error {
			return b.TurnOff()
		}),
	}

	cmdBulbToggle = &cobra.Command{
		Use:   `toggle <ip>`,
		Short: `toggle the light on or off`,
		Run: withBulb(func(b *goyeelight.Bulb, args []string) error {
			return b.Toggle()
		}),
	}

	cmdBulbRGB = &cobra.Command{
		Use:   `rgb <ip> <red> <green> <blue>`,
		Short: `set the light color (components from 0-255)`,
		Run: withBulb(func(b *goyeelight.Bulb, args []string) error {
			components, err := intArgs(args, 3)
			if err != nil {
				return err
			}
			return b.SetRGB(uint8(components[0]), uint8(components[1]), uint8(components[2]))
		}),
	}

	cmdBulbBright = &cobra.Command{
		Use:   `bright <ip> <brightness>`,
		Short: `set the light brightness (1-100)`,
		Run: withBulb(func(b *goyeelight.Bulb, args []string) error {
			values, err := intArgs(args, 1)
			if err != nil {
				return err
			}
			return b.SetBrightness(values[0])
		}),
	}

	cmdBulbTemp = &cobra.Command{
		Use:   `temp <ip> <degrees>`,
		Short: `set the white color temperature (1700-6500)`,
		Run: withBulb(func(b *goyeelight.Bulb, args []string) error {
			values, err := intArgs(args, 1)
			if err != nil {
				return err
			}
			return b.SetColorTemp(values[0])
		}),
	}

	cmdBulbDisco = &cobra.Command{
		Use:   `disco <ip>`,
		Short: `start a disco color flow`,
		Run: withBulb(func(b *goyeelight.Bulb, args []string) error {
			return b.StartFlow(flow.Disco(120))
		}),
	}

	cmdBulbProps = &cobra.Command{
		Use:   `props <ip>`,
		Short: `print the current device properties`,
		Run: withBulb(func(b *goyeelight.Bulb, args []string) error {
			props, err := b.GetProperties()
			if err != nil {
				return err
			}
			printProperties(props)
			return nil
		}),
	}

	cmdBulbListen = &cobra.Command{
		Use:   `listen <ip>`,
		Short: `print state updates until interrupted`,
		Run:   listenBulb,
	}

	cmdBulbMusic = &cobra.Command{
		Use:   `music <ip>`,
		Short: `hold the device in music mode until interrupted`,
		Run:   musicBulb,
	}
)

func init() {
	cmdBulb.AddCommand(cmdBulbOn)
	cmdBulb.AddCommand(cmdBulbOff)
	cmdBulb.AddCommand(cmdBulbToggle)
	cmdBulb.AddCommand(cmdBulbRGB)
	cmdBulb.AddCommand(cmdBulbBright)
	cmdBulb.AddCommand(cmdBulbTemp)
	cmdBulb.AddCommand(cmdBulbDisco)
	cmdBulb.AddCommand(cmdBulbProps)
	cmdBulb.AddCommand(cmdBulbListen)
	cmdBulb.AddCommand(cmdBulbMusic)
}

func newBulb(ip string) *goyeelight.Bulb {
	return goyeelight.NewBulb(ip,
		goyeelight.WithTimeout(flagTimeout),
		goyeelight.WithDuration(flagDuration),
		goyeelight.WithEffect(flagEffect),
		goyeelight.WithLogger(logger),
	)
}

// withBulb wraps a device operation in session setup and teardown, taking the
// device address from the first argument
func withBulb(fn func(b *goyeelight.Bulb, args []string) error) func(c *cobra.Command, args []string) {
	return func(c *cobra.Command, args []string) {
		if len(args) < 1 {
			_ = c.Usage()
			logger.Fatalln(`Missing device ip`)
		}

		b := newBulb(args[0])
		if err := b.Listen(nil); err != nil {
			logger.WithField(`error`, err).Fatalln(`Failed connecting to device`)
		}
		defer b.StopListening()

		if err := fn(b, args[1:]); err != nil {
			logger.WithField(`error`, err).Fatalln(`Operation failed`)
		}
	}
}

func intArgs(args []string, count int) ([]int, error) {
	if len(args) < count {
		return nil, fmt.Errorf(`expected %d numeric arguments`, count)
	}
	values := make([]int, count)
	for i := 0; i < count; i++ {
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func discoverDevices(c *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	devices, err := discovery.New(discovery.WithLogger(logger)).Discover(ctx)
	if err != nil {
		logger.WithField(`error`, err).Fatalln(`Discovery failed`)
	}
	if len(devices) == 0 {
		logger.Infoln(`No devices found`)
		return
	}

	// Announcements carry cached state, the live properties come from asking
	// each device directly
	group, _ := errgroup.WithContext(ctx)
	results := make([]map[string]interface{}, len(devices))
	for i, dev := range devices {
		i, dev := i, dev
		group.Go(func() error {
			b := newBulb(dev.Addr)
			if err := b.Listen(nil); err != nil {
				return err
			}
			defer b.StopListening()
			props, err := b.GetProperties()
			if err != nil {
				return err
			}
			results[i] = props
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		logger.WithField(`error`, err).Warnln(`Failed querying some devices`)
	}

	for i, dev := range devices {
		logger.WithFields(logrus.Fields{
			`id`:    dev.ID(),
			`model`: dev.Model(),
		}).Infof("Device at %s:%d", dev.Addr, dev.Port)
		if results[i] != nil {
			printProperties(results[i])
		}
	}
}

func listenBulb(c *cobra.Command, args []string) {
	if len(args) != 1 {
		_ = c.Usage()
		logger.Fatalln(`Missing device ip`)
	}

	b := newBulb(args[0])
	err := b.Listen(func(data map[string]interface{}) {
		fields := logrus.Fields{}
		for k, v := range data {
			fields[k] = v
		}
		logger.WithFields(fields).Infoln(`State update`)
	})
	if err != nil {
		logger.WithField(`error`, err).Fatalln(`Failed connecting to device`)
	}
	defer b.StopListening()

	awaitInterrupt()
}

func musicBulb(c *cobra.Command, args []string) {
	if len(args) != 1 {
		_ = c.Usage()
		logger.Fatalln(`Missing device ip`)
	}

	b := newBulb(args[0])
	if err := b.Listen(nil); err != nil {
		logger.WithField(`error`, err).Fatalln(`Failed connecting to device`)
	}
	defer b.StopListening()

	if err := b.StartMusic(0, ``); err != nil {
		logger.WithField(`error`, err).Fatalln(`Failed entering music mode`)
	}
	logger.Infoln(`Music mode active, commands are not rate limited`)

	awaitInterrupt()

	if err := b.StopMusic(); err != nil {
		logger.WithField(`error`, err).Warnln(`Failed leaving music mode`)
	}
}

func awaitInterrupt() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	<-signals
}

func printProperties(props map[string]interface{}) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		logger.Infof("  %s: %v", k, props[k])
	}
}
