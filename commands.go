package goyeelight

import (
	"fmt"
	"time"

	"github.com/lanterndev/goyeelight/flow"
)

// Command is a single (method, params) pair understood by the device.  The
// builders below are pure: they construct commands from typed arguments
// without touching the network, so they can be inspected, composed or
// replayed freely.
type Command struct {
	Method string
	Params []interface{}
}

// CommandOption overrides one of the ambient defaults (effect, duration,
// power mode) for a single command
type CommandOption func(*commandConfig)

type commandConfig struct {
	effect   string
	duration int
	mode     PowerMode
	value    int
	hasValue bool
}

// Effect overrides the transition effect for one command
func Effect(effect string) CommandOption {
	return func(c *commandConfig) { c.effect = effect }
}

// Duration overrides the transition duration for one command
func Duration(duration time.Duration) CommandOption {
	return func(c *commandConfig) { c.duration = int(duration / time.Millisecond) }
}

// Mode overrides the power mode for one power-on command
func Mode(mode PowerMode) CommandOption {
	return func(c *commandConfig) { c.mode = mode }
}

// Value supplies a brightness value to SetHSV, turning it into a single-step
// color flow
func Value(value int) CommandOption {
	return func(c *commandConfig) { c.value = value; c.hasValue = true }
}

// config folds the Bulb's ambient defaults with per-command overrides
func (b *Bulb) config(options []CommandOption) commandConfig {
	c := commandConfig{
		effect:   b.effect,
		duration: b.duration,
		mode:     b.powerMode,
	}
	for _, option := range options {
		option(&c)
	}
	if c.duration < 30 {
		c.duration = 30
	}
	return c
}

// PowerCommand builds a set_power command.  The power mode is appended only
// when it differs from PowerModeNormal.
func PowerCommand(on bool, effect string, duration int, mode PowerMode) Command {
	state := `off`
	if on {
		state = `on`
	}
	params := []interface{}{state, effect, duration}
	if mode != PowerModeNormal {
		params = append(params, int(mode))
	}
	return Command{Method: `set_power`, Params: params}
}

// ToggleCommand builds a toggle command
func ToggleCommand(effect string, duration int) Command {
	return Command{Method: `toggle`, Params: []interface{}{effect, duration}}
}

// DevToggleCommand builds a dev_toggle command, toggling the main light and
// the ambient light together
func DevToggleCommand(effect string, duration int) Command {
	return Command{Method: `dev_toggle`, Params: []interface{}{effect, duration}}
}

// RGBCommand builds a set_rgb command
func RGBCommand(red, green, blue uint8, effect string, duration int) Command {
	return Command{Method: `set_rgb`, Params: []interface{}{flow.RGB(red, green, blue), effect, duration}}
}

// HSVCommand builds a set_hsv command
func HSVCommand(hue, saturation int, effect string, duration int) Command {
	return Command{Method: `set_hsv`, Params: []interface{}{hue, saturation, effect, duration}}
}

// HSVValueCommand builds a single-step color flow that transitions to the
// supplied hue/saturation at an explicit brightness value, which set_hsv
// itself cannot express
func HSVValueCommand(hue, saturation, value int, effect string, duration int) Command {
	d := duration
	if effect == EffectSudden {
		d = 50
	}
	if d < 50 {
		d = 50
	}
	expression := fmt.Sprintf(`%d, 1, %d, %d`, d, flow.HSV(hue, saturation), value)
	return Command{Method: `start_cf`, Params: []interface{}{1, 1, expression}}
}

// BrightnessCommand builds a set_bright command (1-100)
func BrightnessCommand(brightness int, effect string, duration int) Command {
	return Command{Method: `set_bright`, Params: []interface{}{brightness, effect, duration}}
}

// ColorTempCommand builds a set_ct_abx command (1700-6500 degrees)
func ColorTempCommand(degrees int, effect string, duration int) Command {
	return Command{Method: `set_ct_abx`, Params: []interface{}{degrees, effect, duration}}
}

// NameCommand builds a set_name command
func NameCommand(name string) Command {
	return Command{Method: `set_name`, Params: []interface{}{name}}
}

// DefaultCommand builds a set_default command, persisting the current state
// as the device's power-on default
func DefaultCommand() Command {
	return Command{Method: `set_default`, Params: []interface{}{}}
}

// AdjustCommand builds a set_adjust command.  action is one of "increase",
// "decrease" or "circle", prop one of "bright", "ct" or "color".
func AdjustCommand(action, prop string) Command {
	return Command{Method: `set_adjust`, Params: []interface{}{action, prop}}
}

// FlowCommand builds a start_cf command from a flow description
func FlowCommand(f *flow.Flow) Command {
	return Command{Method: `start_cf`, Params: f.Params()}
}

// StopFlowCommand builds a stop_cf command
func StopFlowCommand() Command {
	return Command{Method: `stop_cf`, Params: []interface{}{}}
}

// ColorSceneCommand builds a set_scene command switching directly to an RGB
// color and brightness, turning the light on if needed
func ColorSceneCommand(red, green, blue uint8, brightness int) Command {
	return Command{Method: `set_scene`, Params: []interface{}{`color`, flow.RGB(red, green, blue), brightness}}
}

// HSVSceneCommand builds a set_scene command switching directly to an HSV
// color and brightness
func HSVSceneCommand(hue, saturation, brightness int) Command {
	return Command{Method: `set_scene`, Params: []interface{}{`hsv`, hue, saturation, brightness}}
}

// TempSceneCommand builds a set_scene command switching directly to a color
// temperature and brightness
func TempSceneCommand(degrees, brightness int) Command {
	return Command{Method: `set_scene`, Params: []interface{}{`ct`, degrees, brightness}}
}

// FlowSceneCommand builds a set_scene command starting a color flow
func FlowSceneCommand(f *flow.Flow) Command {
	params := append([]interface{}{`cf`}, f.Params()...)
	return Command{Method: `set_scene`, Params: params}
}

// AutoDelayOffSceneCommand builds a set_scene command turning the light on at
// the supplied brightness with a timer turning it back off after the given
// number of minutes
func AutoDelayOffSceneCommand(brightness, minutes int) Command {
	return Command{Method: `set_scene`, Params: []interface{}{`auto_delay_off`, brightness, minutes}}
}

// CronAddCommand builds a cron_add command scheduling an event after the
// supplied number of minutes
func CronAddCommand(event CronType, minutes int) Command {
	return Command{Method: `cron_add`, Params: []interface{}{int(event), minutes}}
}

// CronGetCommand builds a cron_get command
func CronGetCommand(event CronType) Command {
	return Command{Method: `cron_get`, Params: []interface{}{int(event)}}
}

// CronDelCommand builds a cron_del command
func CronDelCommand(event CronType) Command {
	return Command{Method: `cron_del`, Params: []interface{}{int(event)}}
}

// MusicCommand builds a set_music command.  Enabling carries the address the
// device should connect back to.
func MusicCommand(on bool, ip string, port int) Command {
	if on {
		return Command{Method: `set_music`, Params: []interface{}{1, ip, port}}
	}
	return Command{Method: `set_music`, Params: []interface{}{0}}
}

// PropertiesCommand builds a get_prop command
func PropertiesCommand(names []string) Command {
	params := make([]interface{}, len(names))
	for i, name := range names {
		params[i] = name
	}
	return Command{Method: `get_prop`, Params: params}
}

// TurnOn turns the light on
func (b *Bulb) TurnOn(options ...CommandOption) error {
	c := b.config(options)
	return b.send(PowerCommand(true, c.effect, c.duration, c.mode))
}

// TurnOff turns the light off.  Turning off implicitly leaves music mode, so
// the resulting disconnect is treated as expected and produces no disconnect
// notification.
func (b *Bulb) TurnOff(options ...CommandOption) error {
	if b.session.MusicModeEnabled() {
		b.session.ExpectDisconnect()
	}
	c := b.config(options)
	return b.send(PowerCommand(false, c.effect, c.duration, c.mode))
}

// Toggle toggles the light on or off
func (b *Bulb) Toggle(options ...CommandOption) error {
	c := b.config(options)
	return b.send(ToggleCommand(c.effect, c.duration))
}

// DevToggle toggles the main light and the ambient light together
func (b *Bulb) DevToggle(options ...CommandOption) error {
	c := b.config(options)
	return b.send(DevToggleCommand(c.effect, c.duration))
}

// SetPowerMode turns the light on into the supplied mode
func (b *Bulb) SetPowerMode(mode PowerMode) error {
	return b.TurnOn(Mode(mode))
}

// SetRGB sets the light's color
func (b *Bulb) SetRGB(red, green, blue uint8, options ...CommandOption) error {
	if err := b.ensureOn(); err != nil {
		return err
	}
	c := b.config(options)
	return b.send(RGBCommand(red, green, blue, c.effect, c.duration))
}

// SetHSV sets the light's color from hue (0-359) and saturation (0-100).
// When a Value option is supplied the change runs as a single-step flow, as
// the plain command cannot carry a brightness value.
func (b *Bulb) SetHSV(hue, saturation int, options ...CommandOption) error {
	if err := b.ensureOn(); err != nil {
		return err
	}
	c := b.config(options)
	if c.hasValue {
		return b.send(HSVValueCommand(hue, saturation, c.value, c.effect, c.duration))
	}
	return b.send(HSVCommand(hue, saturation, c.effect, c.duration))
}

// SetBrightness sets the light's brightness (1-100)
func (b *Bulb) SetBrightness(brightness int, options ...CommandOption) error {
	if err := b.ensureOn(); err != nil {
		return err
	}
	c := b.config(options)
	return b.send(BrightnessCommand(brightness, c.effect, c.duration))
}

// SetColorTemp sets the light's white color temperature in degrees
// (1700-6500, subject to the model's capabilities)
func (b *Bulb) SetColorTemp(degrees int, options ...CommandOption) error {
	if err := b.ensureOn(); err != nil {
		return err
	}
	c := b.config(options)
	return b.send(ColorTempCommand(degrees, c.effect, c.duration))
}

// SetName sets the device's name
func (b *Bulb) SetName(name string) error {
	return b.send(NameCommand(name))
}

// SetDefault persists the current state as the device's power-on default
func (b *Bulb) SetDefault() error {
	return b.send(DefaultCommand())
}

// SetAdjust adjusts a property without an absolute target.  action is one of
// "increase", "decrease" or "circle", prop one of "bright", "ct" or "color".
func (b *Bulb) SetAdjust(action, prop string) error {
	return b.send(AdjustCommand(action, prop))
}

// StartFlow starts a color flow
func (b *Bulb) StartFlow(f *flow.Flow) error {
	if err := b.ensureOn(); err != nil {
		return err
	}
	return b.send(FlowCommand(f))
}

// StopFlow stops a running color flow
func (b *Bulb) StopFlow() error {
	return b.send(StopFlowCommand())
}

// SetColorScene switches directly to an RGB color and brightness, turning
// the light on if needed
func (b *Bulb) SetColorScene(red, green, blue uint8, brightness int) error {
	return b.send(ColorSceneCommand(red, green, blue, brightness))
}

// SetHSVScene switches directly to an HSV color and brightness
func (b *Bulb) SetHSVScene(hue, saturation, brightness int) error {
	return b.send(HSVSceneCommand(hue, saturation, brightness))
}

// SetTempScene switches directly to a color temperature and brightness
func (b *Bulb) SetTempScene(degrees, brightness int) error {
	return b.send(TempSceneCommand(degrees, brightness))
}

// SetFlowScene starts a color flow via set_scene
func (b *Bulb) SetFlowScene(f *flow.Flow) error {
	return b.send(FlowSceneCommand(f))
}

// SetAutoDelayOff turns the light on at the supplied brightness and sets a
// timer to turn it back off after the given number of minutes
func (b *Bulb) SetAutoDelayOff(brightness, minutes int) error {
	return b.send(AutoDelayOffSceneCommand(brightness, minutes))
}

// CronAdd schedules an event after the supplied number of minutes
func (b *Bulb) CronAdd(event CronType, minutes int) error {
	return b.send(CronAddCommand(event, minutes))
}

// CronGet retrieves a scheduled event
func (b *Bulb) CronGet(event CronType) ([]interface{}, error) {
	cmd := CronGetCommand(event)
	return b.session.Send(cmd.Method, cmd.Params)
}

// CronDel removes a scheduled event
func (b *Bulb) CronDel(event CronType) error {
	return b.send(CronDelCommand(event))
}
