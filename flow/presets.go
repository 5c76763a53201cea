package flow

// Preset flows mirroring the stock effects shipped with the device apps.

// Disco returns a color flow pulsing through saturated hues at the supplied
// beats per minute
func Disco(bpm int) *Flow {
	if bpm <= 0 {
		bpm = 120
	}
	duration := 60000 / bpm
	transitions := make([]Transition, 0, 8)
	for _, hue := range []int{0, 90, 180, 270} {
		transitions = append(transitions,
			HSVTransition(hue, 100, duration, 100),
			HSVTransition(hue, 100, duration, 1),
		)
	}
	return New(0, Recover, transitions...)
}

// Temp cycles slowly between warm and cool white
func Temp() *Flow {
	return New(0, Recover,
		TemperatureTransition(1700, 40000, 80),
		TemperatureTransition(6500, 40000, 80),
	)
}

// Strobe flashes white on and off rapidly
func Strobe() *Flow {
	return New(0, Recover,
		HSVTransition(0, 0, 50, 100),
		SleepTransition(50),
	)
}

// Pulse flashes the supplied color once, then restores the previous state.
// Useful as a notification.
func Pulse(red, green, blue uint8, duration, brightness int) *Flow {
	return New(1, Recover,
		RGBTransition(red, green, blue, duration, brightness),
		RGBTransition(red, green, blue, duration, 1),
	)
}

// StrobeColor flashes through colors as fast as the device allows
func StrobeColor(brightness int) *Flow {
	transitions := make([]Transition, 0, 6)
	for _, hue := range []int{240, 60, 120, 300, 0, 180} {
		transitions = append(transitions, HSVTransition(hue, 100, 50, brightness))
	}
	return New(0, Recover, transitions...)
}

// Alarm flashes red at the supplied period in milliseconds
func Alarm(duration int) *Flow {
	return New(0, Recover,
		RGBTransition(255, 0, 0, duration, 100),
		RGBTransition(255, 0, 0, duration, 60),
	)
}

// Police alternates between red and blue
func Police(duration, brightness int) *Flow {
	return New(0, Recover,
		RGBTransition(255, 0, 0, duration, brightness),
		RGBTransition(0, 0, 255, duration, brightness),
	)
}

// Police2 flashes red and blue with pauses, like a police beacon
func Police2() *Flow {
	return New(0, Recover,
		RGBTransition(255, 0, 0, 250, 100),
		RGBTransition(255, 0, 0, 250, 1),
		RGBTransition(255, 0, 0, 250, 100),
		SleepTransition(250),
		RGBTransition(0, 0, 255, 250, 100),
		RGBTransition(0, 0, 255, 250, 1),
		RGBTransition(0, 0, 255, 250, 100),
		SleepTransition(250),
	)
}

// LSD drifts through pastel hues
func LSD() *Flow {
	return New(0, Recover,
		HSVTransition(3, 85, 3000, 100),
		HSVTransition(95, 85, 3000, 100),
		HSVTransition(197, 85, 3000, 100),
		HSVTransition(239, 85, 3000, 100),
		HSVTransition(332, 85, 3000, 100),
	)
}

// Christmas alternates red and green
func Christmas(duration, brightness, sleep int) *Flow {
	return New(0, Recover,
		HSVTransition(0, 100, duration, brightness),
		SleepTransition(sleep),
		HSVTransition(120, 100, duration, brightness),
		SleepTransition(sleep),
	)
}

// RGBLoop rotates through pure red, green and blue
func RGBLoop(duration, brightness, sleep int) *Flow {
	transitions := make([]Transition, 0, 6)
	for _, hue := range []int{0, 120, 240} {
		transitions = append(transitions,
			HSVTransition(hue, 100, duration, brightness),
			SleepTransition(sleep),
		)
	}
	return New(0, Recover, transitions...)
}

// RandomLoop rotates through a spread of hues
func RandomLoop(duration, brightness int) *Flow {
	transitions := make([]Transition, 0, 8)
	for _, hue := range []int{30, 75, 150, 195, 240, 300, 330, 0} {
		transitions = append(transitions, HSVTransition(hue, 100, duration, brightness))
	}
	return New(0, Recover, transitions...)
}

// Slowdown dims the light in steps, for winding down
func Slowdown(duration, brightness int) *Flow {
	step := brightness / 6
	if step < 1 {
		step = 1
	}
	transitions := make([]Transition, 0, 6)
	for level := brightness; level > 0; level -= step {
		transitions = append(transitions, TemperatureTransition(2700, duration, level))
	}
	return New(1, Off, transitions...)
}
