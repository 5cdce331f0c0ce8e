package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine(t *testing.T, cfg Config) *Machine {
	t.Helper()
	m, err := New(cfg)
	require.NoError(t, err)
	return m
}

func TestNew_StartsAlert(t *testing.T) {
	t.Parallel()

	m := newMachine(t, DefaultConfig())
	assert.Equal(t, LevelAlert, m.Level())
	assert.Zero(t, m.counter)
}

func TestUpdate_ClosedRun(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 20; n++ {
		m := newMachine(t, DefaultConfig())
		var st Status
		st.Level = m.Level()
		for i := 0; i < n; i++ {
			st = m.Update(Observed(0.15))
		}

		switch {
		case n == 0:
			assert.Equal(t, LevelAlert, st.Level, "n=%d", n)
		case n < DefaultAlarmFrames:
			assert.Equal(t, LevelClosing, st.Level, "n=%d", n)
		default:
			assert.Equal(t, LevelAlarm, st.Level, "n=%d", n)
		}
		assert.Equal(t, n, m.counter)
	}
}

func TestUpdate_OpenResetsAfterAlarm(t *testing.T) {
	t.Parallel()

	m := newMachine(t, DefaultConfig())
	for i := 0; i < 40; i++ {
		m.Update(Observed(0.05))
	}
	require.Equal(t, LevelAlarm, m.Level())

	st := m.Update(Observed(DefaultEARThreshold)) // threshold itself counts as open
	assert.Equal(t, LevelAlert, st.Level)
	assert.Equal(t, LevelAlarm, st.Previous)
	assert.True(t, st.Changed())
	assert.Zero(t, st.ClosedFrames)
}

func TestUpdate_NoFaceCountsAsClosedByDefault(t *testing.T) {
	t.Parallel()

	closed := newMachine(t, DefaultConfig())
	lost := newMachine(t, DefaultConfig())

	for i := 0; i < 20; i++ {
		a := closed.Update(Observed(0.1))
		b := lost.Update(NoFace())
		assert.Equal(t, a.Level, b.Level, "frame %d", i)
		assert.Equal(t, a.ClosedFrames, b.ClosedFrames, "frame %d", i)
		assert.Equal(t, i+1, b.FaceLostFrames)
		assert.Zero(t, a.FaceLostFrames)
	}
}

func TestUpdate_MixedClosedAndNoFace(t *testing.T) {
	t.Parallel()

	m := newMachine(t, DefaultConfig())
	for i := 0; i < 7; i++ {
		m.Update(Observed(0.1))
		m.Update(NoFace())
	}
	assert.Equal(t, 14, m.counter)
	assert.Equal(t, LevelClosing, m.Level())

	st := m.Update(NoFace())
	assert.Equal(t, LevelAlarm, st.Level)
}

func TestUpdate_FaceLostPolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		policy      FaceLostPolicy
		wantCounter int
		wantLevel   Level
	}{
		{FaceLostCountsAsClosed, 8, LevelClosing},
		{FaceLostHolds, 3, LevelClosing},
		{FaceLostResets, 0, LevelAlert},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.FaceLost = tt.policy
			m := newMachine(t, cfg)

			for i := 0; i < 3; i++ {
				m.Update(Observed(0.1))
			}
			var st Status
			for i := 0; i < 5; i++ {
				st = m.Update(NoFace())
			}
			assert.Equal(t, tt.wantCounter, st.ClosedFrames)
			assert.Equal(t, tt.wantLevel, st.Level)
			assert.Equal(t, 5, st.FaceLostFrames)

			// face returns: face-lost run clears regardless of policy
			st = m.Update(Observed(0.1))
			assert.Zero(t, st.FaceLostFrames)
		})
	}
}

func TestUpdate_InjectedThresholds(t *testing.T) {
	t.Parallel()

	m := newMachine(t, Config{EARThreshold: 0.5, AlarmFrames: 1})
	st := m.Update(Observed(0.4))
	assert.Equal(t, LevelAlarm, st.Level)

	m = newMachine(t, Config{EARThreshold: 0, AlarmFrames: 1000})
	for i := 0; i < 100; i++ {
		st = m.Update(Observed(0))
	}
	assert.Equal(t, LevelAlert, st.Level, "nothing is below a zero threshold")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultConfig().Validate())

	_, err := New(Config{EARThreshold: -0.1, AlarmFrames: 15})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{EARThreshold: 0.21, AlarmFrames: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{EARThreshold: 0.21, AlarmFrames: 15, FaceLost: FaceLostPolicy(9)})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseFaceLostPolicy(t *testing.T) {
	t.Parallel()

	for _, p := range []FaceLostPolicy{FaceLostCountsAsClosed, FaceLostHolds, FaceLostResets} {
		got, err := ParseFaceLostPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParseFaceLostPolicy(" HOLD ")
	require.NoError(t, err)
	assert.Equal(t, FaceLostHolds, got)

	_, err = ParseFaceLostPolicy("ignore")
	assert.Error(t, err)
}

func TestLevel_StringAndColor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ALERT", LevelAlert.String())
	assert.Equal(t, "CLOSING", LevelClosing.String())
	assert.Equal(t, "ALARM", LevelAlarm.String())
	assert.Equal(t, "Level(7)", Level(7).String())

	assert.Equal(t, ColorGreen, LevelAlert.Color())
	assert.Equal(t, ColorAmber, LevelClosing.Color())
	assert.Equal(t, ColorRed, LevelAlarm.Color())
}

func TestStatus_Label(t *testing.T) {
	t.Parallel()

	m := newMachine(t, DefaultConfig())
	assert.Equal(t, "Alert", m.Update(Observed(0.3)).Label())
	assert.Equal(t, "Eyes closing... 1/15", m.Update(Observed(0.1)).Label())
	assert.Equal(t, "No face detected", m.Update(NoFace()).Label())

	for i := 0; i < 20; i++ {
		m.Update(Observed(0.1))
	}
	assert.Equal(t, "DROWSINESS ALERT!", m.Update(NoFace()).Label())
}

func TestUpdate_UnmeasuredFaceIsNotLost(t *testing.T) {
	t.Parallel()

	m := newMachine(t, DefaultConfig())
	m.Update(NoFace())
	st := m.Update(NoFace())
	require.Equal(t, 2, st.FaceLostFrames)

	st = m.Update(Unmeasured())
	assert.Zero(t, st.FaceLostFrames, "a face was seen")
	assert.Equal(t, 3, st.ClosedFrames, "no metric follows the face-lost policy")
	assert.Equal(t, "Eyes closing... 3/15", st.Label())

	hold := newMachine(t, Config{EARThreshold: 0.21, AlarmFrames: 15, FaceLost: FaceLostHolds})
	hold.Update(Observed(0.1))
	st = hold.Update(Unmeasured())
	assert.Equal(t, 1, st.ClosedFrames)
	assert.Equal(t, LevelClosing, st.Level)
}
