package binding

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/nerrad567/duuxlink/internal/dispatch"
	"github.com/nerrad567/duuxlink/internal/payload"
	"github.com/nerrad567/duuxlink/internal/profile"
)

// recordingCommander captures published commands.
type recordingCommander struct {
	mu       sync.Mutex
	commands []string
	err      error
}

func (c *recordingCommander) Publish(command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.commands = append(c.commands, command)
	return nil
}

func (c *recordingCommander) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.commands))
	copy(out, c.commands)
	return out
}

var testDevice = NewDeviceInfo("aa:bb:cc", "Living Room", "Whisper Flex 2")

func whisperFlex2(t *testing.T) *profile.Profile {
	t.Helper()
	r, err := profile.Builtin(nil)
	if err != nil {
		t.Fatalf("Builtin() error = %v", err)
	}
	p, ok := r.Get("whisper_flex_2")
	if !ok {
		t.Fatal("whisper_flex_2 missing from catalogue")
	}
	return p
}

func TestPercentageToSpeed(t *testing.T) {
	tests := []struct {
		pct, max, want int
	}{
		{50, 30, 15},
		{100, 30, 30},
		{1, 30, 1},  // 0.3 rounds to 0, clamped to 1
		{5, 30, 2},  // 1.5 rounds half to even
		{15, 30, 4}, // 4.5 rounds half to even
		{25, 4, 1},
		{50, 4, 2},
		{75, 4, 3},
		{38, 4, 2},
		{1, 4, 1},
		{100, 26, 26},
	}
	for _, tt := range tests {
		if got := PercentageToSpeed(tt.pct, tt.max); got != tt.want {
			t.Errorf("PercentageToSpeed(%d, %d) = %d, want %d", tt.pct, tt.max, got, tt.want)
		}
	}
}

func TestSpeedToPercentage(t *testing.T) {
	tests := []struct {
		speed, max, want int
	}{
		{15, 30, 50},
		{0, 30, 0},
		{10, 30, 33},
		{30, 30, 100},
		{4, 4, 100},
		{1, 26, 3},
	}
	for _, tt := range tests {
		if got := SpeedToPercentage(tt.speed, tt.max); got != tt.want {
			t.Errorf("SpeedToPercentage(%d, %d) = %d, want %d", tt.speed, tt.max, got, tt.want)
		}
	}
}

func TestFan_SetPercentage(t *testing.T) {
	spec := profile.FanSpec{
		Features: []profile.Feature{profile.FeatureTurnOn, profile.FeatureTurnOff, profile.FeatureSetSpeed},
		MaxSpeed: 30,
		PowerKey: "power",
		SpeedKey: "speed",
	}

	tests := []struct {
		name    string
		powered bool
		pct     int
		want    []string
		wantErr error
	}{
		{name: "off fan powers on first", pct: 50, want: []string{"tune set power 1", "tune set speed 15"}},
		{name: "on fan sends speed only", powered: true, pct: 50, want: []string{"tune set speed 15"}},
		{name: "zero turns off", powered: true, pct: 0, want: []string{"tune set power 0"}},
		{name: "zero on off fan still turns off", pct: 0, want: []string{"tune set power 0"}},
		{name: "full speed", powered: true, pct: 100, want: []string{"tune set speed 30"}},
		{name: "above range", pct: 101, wantErr: ErrOutOfRange},
		{name: "negative", pct: -1, wantErr: ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &recordingCommander{}
			fan := NewFan(spec, testDevice, cmd)
			if tt.powered {
				fan.HandleSnapshot(payload.Snapshot{"power": float64(1)})
			}

			err := fan.SetPercentage(tt.pct)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SetPercentage(%d) error = %v, want %v", tt.pct, err, tt.wantErr)
				}
				if len(cmd.sent()) != 0 {
					t.Errorf("published %v on error", cmd.sent())
				}
				return
			}
			if err != nil {
				t.Fatalf("SetPercentage(%d) error = %v", tt.pct, err)
			}
			if got := cmd.sent(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("commands = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFan_CustomKeys(t *testing.T) {
	cmd := &recordingCommander{}
	fan := NewFan(profile.FanSpec{MaxSpeed: 4, PowerKey: "pwr", SpeedKey: "lvl"}, testDevice, cmd)

	fan.HandleSnapshot(payload.Snapshot{"pwr": float64(1), "lvl": float64(2)})
	if !fan.IsOn() || fan.Speed() != 2 || fan.Percentage() != 50 {
		t.Errorf("state = on:%v speed:%d pct:%d", fan.IsOn(), fan.Speed(), fan.Percentage())
	}

	if err := fan.SetPercentage(100); err != nil {
		t.Fatalf("SetPercentage() error = %v", err)
	}
	if err := fan.TurnOff(); err != nil {
		t.Fatalf("TurnOff() error = %v", err)
	}
	want := []string{"tune set lvl 4", "tune set pwr 0"}
	if got := cmd.sent(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestFan_HandleSnapshot(t *testing.T) {
	spec := profile.FanSpec{
		Features: []profile.Feature{profile.FeatureOscillate, profile.FeatureDirection},
		MaxSpeed: 26,
		PowerKey: "power",
		SpeedKey: "speed",
	}
	fan := NewFan(spec, testDevice, &recordingCommander{})

	fan.HandleSnapshot(payload.Snapshot{"power": float64(1), "speed": float64(13), "swing": float64(1), "tilt": float64(1)})
	if !fan.IsOn() || fan.Speed() != 13 || !fan.Oscillating() || fan.Direction() != DirectionReverse {
		t.Fatalf("after full snapshot: %v", fan.State())
	}

	// Absent keys keep their previous values.
	fan.HandleSnapshot(payload.Snapshot{"timer": float64(2)})
	if !fan.IsOn() || fan.Speed() != 13 || !fan.Oscillating() || fan.Direction() != DirectionReverse {
		t.Errorf("after unrelated snapshot: %v", fan.State())
	}

	fan.HandleSnapshot(payload.Snapshot{"power": float64(0), "tilt": float64(0)})
	if fan.IsOn() || fan.Direction() != DirectionForward {
		t.Errorf("after power off: %v", fan.State())
	}
	if fan.Percentage() != 50 {
		t.Errorf("Percentage() = %d, want 50", fan.Percentage())
	}
}

func TestFan_UnsupportedFeatures(t *testing.T) {
	cmd := &recordingCommander{}
	fan := NewFan(profile.FanSpec{MaxSpeed: 30, PowerKey: "power", SpeedKey: "speed"}, testDevice, cmd)

	fan.HandleSnapshot(payload.Snapshot{"swing": float64(1), "tilt": float64(1)})
	if fan.Oscillating() || fan.Direction() != DirectionForward {
		t.Error("unsupported features should ignore swing and tilt")
	}
	if _, ok := fan.State()["oscillating"]; ok {
		t.Error("State() exposes oscillating without the feature")
	}

	if err := fan.Oscillate(true); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Oscillate() error = %v, want ErrUnsupported", err)
	}
	if err := fan.SetDirection(DirectionReverse); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SetDirection() error = %v, want ErrUnsupported", err)
	}
	if len(cmd.sent()) != 0 {
		t.Errorf("published %v", cmd.sent())
	}
}

func TestFan_OscillateAndDirection(t *testing.T) {
	cmd := &recordingCommander{}
	spec := profile.FanSpec{
		Features: []profile.Feature{profile.FeatureOscillate, profile.FeatureDirection},
		MaxSpeed: 26, PowerKey: "power", SpeedKey: "speed",
	}
	fan := NewFan(spec, testDevice, cmd)

	_ = fan.Oscillate(true)
	_ = fan.Oscillate(false)
	_ = fan.SetDirection(DirectionReverse)
	_ = fan.SetDirection(DirectionForward)
	if err := fan.SetDirection("sideways"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetDirection(sideways) error = %v", err)
	}

	want := []string{"tune set swing 1", "tune set swing 0", "tune set tilt 1", "tune set tilt 0"}
	if got := cmd.sent(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestSwitch(t *testing.T) {
	cmd := &recordingCommander{}
	sw := NewSwitch(profile.SwitchSpec{
		Key: "night_mode", Name: "Night Mode",
		CommandOn: "tune set night 1", CommandOff: "tune set night 0",
		StateKey: "night",
	}, testDevice, cmd)

	sw.HandleSnapshot(payload.Snapshot{"night": float64(2)})
	if !sw.IsOn() {
		t.Error("value 2 should be on")
	}
	sw.HandleSnapshot(payload.Snapshot{"power": float64(0)})
	if !sw.IsOn() {
		t.Error("absent key should keep the previous value")
	}
	sw.HandleSnapshot(payload.Snapshot{"night": float64(0)})
	if sw.IsOn() {
		t.Error("value 0 should be off")
	}

	_ = sw.TurnOn()
	_ = sw.TurnOff()
	want := []string{"tune set night 1", "tune set night 0"}
	if got := cmd.sent(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestSensor_Multiplier(t *testing.T) {
	s := NewSensor(profile.SensorSpec{Key: "battery_level", Name: "Battery Level", StateKey: "batlvl", Multiplier: 10}, testDevice)

	if _, ok := s.Value(); ok {
		t.Error("Value() ok before first report")
	}
	if s.State()["value"] != nil {
		t.Errorf("State() = %v, want nil value", s.State())
	}

	s.HandleSnapshot(payload.Snapshot{"batlvl": float64(5)})
	if v, ok := s.Value(); !ok || v != 50 {
		t.Errorf("Value() = %v, %v, want 50", v, ok)
	}

	s.HandleSnapshot(payload.Snapshot{})
	if v, _ := s.Value(); v != 50 {
		t.Errorf("Value() = %v after empty snapshot, want 50", v)
	}
}

func TestSensor_DefaultMultiplier(t *testing.T) {
	s := NewSensor(profile.SensorSpec{Key: "pm_10", Name: "PM10", StateKey: "ppm"}, testDevice)
	s.HandleSnapshot(payload.Snapshot{"ppm": float64(17)})
	if v, _ := s.Value(); v != 17 {
		t.Errorf("Value() = %v, want 17", v)
	}
}

func TestBinarySensor(t *testing.T) {
	b := NewBinarySensor(profile.BinarySensorSpec{Key: "charging", Name: "Charging", StateKey: "batcha"}, testDevice)

	b.HandleSnapshot(payload.Snapshot{"batcha": float64(1)})
	if !b.IsOn() {
		t.Error("value 1 should be on")
	}
	b.HandleSnapshot(payload.Snapshot{"batcha": float64(2)})
	if b.IsOn() {
		t.Error("only the value 1 is on")
	}
}

func TestNumber(t *testing.T) {
	cmd := &recordingCommander{}
	n := NewNumber(profile.NumberSpec{
		Key: "timer", Name: "Timer", Command: "tune set timer", StateKey: "timer",
		Min: 0, Max: 12, Step: 1,
	}, testDevice, cmd)

	if n.Value() != 0 {
		t.Errorf("initial Value() = %v, want min", n.Value())
	}
	n.HandleSnapshot(payload.Snapshot{"timer": float64(4)})
	if n.Value() != 4 {
		t.Errorf("Value() = %v, want 4", n.Value())
	}

	for _, v := range []float64{2.5, 3.5, 7} {
		if err := n.SetValue(v); err != nil {
			t.Fatalf("SetValue(%v) error = %v", v, err)
		}
	}
	want := []string{"tune set timer 2", "tune set timer 4", "tune set timer 7"}
	if got := cmd.sent(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}

	if err := n.SetValue(13); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetValue(13) error = %v, want ErrOutOfRange", err)
	}
}

func TestSelect(t *testing.T) {
	p := whisperFlex2(t)
	var spec profile.SelectSpec
	for _, s := range p.Selects {
		if s.Key == "horizontal_oscillation" {
			spec = s
		}
	}

	cmd := &recordingCommander{}
	sel := NewSelect(spec, testDevice, cmd)

	if _, ok := sel.Current(); ok {
		t.Error("Current() ok before first report")
	}

	sel.HandleSnapshot(payload.Snapshot{"horosc": float64(2)})
	if label, ok := sel.Current(); !ok || label != "60°" {
		t.Errorf("Current() = %q, %v, want 60°", label, ok)
	}

	sel.HandleSnapshot(payload.Snapshot{"horosc": float64(9)})
	if _, ok := sel.Current(); ok {
		t.Error("Current() ok for a value with no label")
	}
	if raw, _ := sel.Raw(); raw != 9 {
		t.Errorf("Raw() = %d, want 9", raw)
	}

	if err := sel.SelectOption("90°"); err != nil {
		t.Fatalf("SelectOption() error = %v", err)
	}
	if err := sel.SelectOption("120°"); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("SelectOption(120°) error = %v, want ErrUnknownOption", err)
	}
	if got := cmd.sent(); !reflect.DeepEqual(got, []string{"tune set horosc 3"}) {
		t.Errorf("commands = %v", got)
	}
}

func TestBuild_WhisperFlex2(t *testing.T) {
	entities := Build(whisperFlex2(t), testDevice, &recordingCommander{})

	var platforms []Platform
	for _, e := range entities {
		platforms = append(platforms, e.Meta().Platform)
	}
	want := []Platform{
		PlatformFan,
		PlatformSwitch, PlatformSwitch,
		PlatformSensor,
		PlatformNumber, PlatformNumber,
		PlatformSelect, PlatformSelect, PlatformSelect,
		PlatformBinarySensor,
	}
	if !reflect.DeepEqual(platforms, want) {
		t.Fatalf("platforms = %v, want %v", platforms, want)
	}

	fan := entities[0].Meta()
	if fan.UniqueID != "duux_fan_local_aa:bb:cc_fan" || fan.EntityID != "fan.living_room" {
		t.Errorf("fan meta = %+v", fan)
	}

	night, err := Find(entities, "night_mode")
	if err != nil {
		t.Fatalf("Find(night_mode) error = %v", err)
	}
	m := night.Meta()
	if m.UniqueID != "duux_fan_local_aa:bb:cc_night_mode" {
		t.Errorf("UniqueID = %q", m.UniqueID)
	}
	if m.EntityID != "switch.living_room_night_mode" || m.Name != "Living Room Night Mode" {
		t.Errorf("EntityID = %q, Name = %q", m.EntityID, m.Name)
	}
	if m.Device.Manufacturer != "Duux" || m.Device.MAC != "aa:bb:cc" {
		t.Errorf("Device = %+v", m.Device)
	}

	if _, err := Find(entities, "missing"); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("Find(missing) error = %v", err)
	}
}

func TestBuild_EntitiesAreListeners(t *testing.T) {
	entities := Build(whisperFlex2(t), testDevice, &recordingCommander{})
	d := dispatch.New(dispatch.Inline)
	for _, e := range entities {
		if !d.Register(e) {
			t.Fatalf("Register(%s) = false", e.Meta().Key)
		}
	}

	d.Notify(payload.Snapshot{"power": float64(1), "speed": float64(15), "batlvl": float64(8), "batcha": float64(1)})

	fan := entities[0].(*Fan)
	if !fan.IsOn() || fan.Percentage() != 50 {
		t.Errorf("fan state = %v", fan.State())
	}
	battery, _ := Find(entities, "battery_level")
	if v, _ := battery.(*Sensor).Value(); v != 80 {
		t.Errorf("battery = %v, want 80", v)
	}
	speed, _ := Find(entities, "speed")
	if speed.(*Number).Value() != 15 {
		t.Errorf("speed number = %v, want 15", speed.(*Number).Value())
	}
}

func TestApply(t *testing.T) {
	pct := 50
	yes := true
	val := 6.0

	tests := []struct {
		name    string
		key     string
		action  Action
		want    []string
		wantErr error
	}{
		{name: "fan on", key: "fan", action: Action{Name: ActionTurnOn}, want: []string{"tune set power 1"}},
		{name: "fan on with percentage", key: "fan", action: Action{Name: ActionTurnOn, Percentage: &pct}, want: []string{"tune set power 1", "tune set speed 15"}},
		{name: "fan percentage missing", key: "fan", action: Action{Name: ActionSetPercentage}, wantErr: ErrOutOfRange},
		{name: "fan oscillate unsupported", key: "fan", action: Action{Name: ActionOscillate, Oscillating: &yes}, wantErr: ErrUnsupported},
		{name: "switch off", key: "child_lock", action: Action{Name: ActionTurnOff}, want: []string{"tune set lock 0"}},
		{name: "number", key: "timer", action: Action{Name: ActionSetValue, Value: &val}, want: []string{"tune set timer 6"}},
		{name: "number without value", key: "timer", action: Action{Name: ActionSetValue}, wantErr: ErrOutOfRange},
		{name: "select", key: "fan_mode", action: Action{Name: ActionSelectOption, Option: "Natural"}, want: []string{"tune set mode 1"}},
		{name: "sensor is read only", key: "battery_level", action: Action{Name: ActionTurnOn}, wantErr: ErrUnsupported},
		{name: "switch wrong action", key: "night_mode", action: Action{Name: ActionSetValue, Value: &val}, wantErr: ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &recordingCommander{}
			entities := Build(whisperFlex2(t), testDevice, cmd)
			e, err := Find(entities, tt.key)
			if err != nil {
				t.Fatalf("Find(%s) error = %v", tt.key, err)
			}

			err = Apply(e, tt.action)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Apply() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if got := cmd.sent(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("commands = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntityID(t *testing.T) {
	tests := []struct {
		platform Platform
		name     string
		want     string
	}{
		{PlatformSensor, "Bedroom Fan Battery Level", "sensor.bedroom_fan_battery_level"},
		{PlatformSwitch, "Café  Night-Mode", "switch.cafe_night_mode"},
		{PlatformFan, " Living Room (2) ", "fan.living_room_2"},
	}

	for _, tt := range tests {
		if got := EntityID(tt.platform, tt.name); got != tt.want {
			t.Errorf("EntityID(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
