package engine

import "time"

// Rotation animation defaults.
const (
	// DefaultRotationSpeed is the per-frame rotation step in radians.
	DefaultRotationSpeed = 0.03
	// SlowdownWindow is the span at the end of an animation over which the
	// speed decays linearly to zero.
	SlowdownWindow = time.Second
)

// CurrentSpeed returns the rotation step for a frame at elapsed into an
// animation of length total: baseSpeed until total-SlowdownWindow, then a
// linear decay reaching zero at total. It never goes below zero.
func CurrentSpeed(elapsed, total time.Duration, baseSpeed float64) float64 {
	if elapsed >= total {
		return 0
	}
	slowdownStart := total - SlowdownWindow
	if elapsed <= slowdownStart {
		return baseSpeed
	}
	t := float64(elapsed-slowdownStart) / float64(SlowdownWindow)
	return baseSpeed * (1 - t)
}

// AnimationState is the state of an Animator.
type AnimationState int

const (
	AnimationIdle AnimationState = iota
	AnimationRunning
)

func (s AnimationState) String() string {
	if s == AnimationRunning {
		return "running"
	}
	return "idle"
}

// Animator drives the scene's rotation animation from externally supplied
// frame times. At most one animation runs at a time.
type Animator struct {
	scene      *Scene
	speed      float64
	state      AnimationState
	start      time.Time
	duration   time.Duration
	onComplete func()
}

// NewAnimator creates an idle animator. A non-positive speed uses
// DefaultRotationSpeed.
func NewAnimator(scene *Scene, speed float64) *Animator {
	if speed <= 0 {
		speed = DefaultRotationSpeed
	}
	return &Animator{scene: scene, speed: speed}
}

// OnComplete sets a hook called once each time an animation runs to completion.
// Cancelled animations do not call it.
func (a *Animator) OnComplete(fn func()) {
	a.onComplete = fn
}

// State returns the current state.
func (a *Animator) State() AnimationState {
	return a.state
}

// Running reports whether an animation is in progress.
func (a *Animator) Running() bool {
	return a.state == AnimationRunning
}

// Elapsed returns how far into the current animation now is, or 0 when idle.
func (a *Animator) Elapsed(now time.Time) time.Duration {
	if a.state != AnimationRunning {
		return 0
	}
	return now.Sub(a.start)
}

// Start begins an animation lasting the scene's duration. It is a no-op, and
// returns false, while another animation runs or when the scene is empty.
func (a *Animator) Start(now time.Time) bool {
	if a.state == AnimationRunning || a.scene.Len() == 0 {
		return false
	}
	a.state = AnimationRunning
	a.start = now
	a.duration = a.scene.Duration()
	return true
}

// Frame applies one animation frame at time now and reports whether the
// animation is still running afterwards. Idle animators ignore frames.
func (a *Animator) Frame(now time.Time) bool {
	if a.state != AnimationRunning {
		return false
	}
	if done := a.scene.Tick(now.Sub(a.start), a.duration, a.speed); !done {
		return true
	}
	a.state = AnimationIdle
	if a.onComplete != nil {
		a.onComplete()
	}
	return false
}

// Cancel stops a running animation, leaving rotations where they are.
// It reports whether an animation was running.
func (a *Animator) Cancel() bool {
	if a.state != AnimationRunning {
		return false
	}
	a.state = AnimationIdle
	return true
}
