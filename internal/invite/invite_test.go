package invite

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testKey = "test-invite-key"

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWindow(t *testing.T) {
	tests := []struct {
		now  string
		want string
	}{
		{"2024-05-01T10:00:00Z", "2024-05-01T10:00:00Z"},
		{"2024-05-01T10:59:59.999Z", "2024-05-01T10:00:00Z"},
		{"2024-05-01T11:00:00Z", "2024-05-01T11:00:00Z"},
		{"2024-05-01T23:30:15.5+02:00", "2024-05-01T23:00:00+02:00"},
	}
	for _, tt := range tests {
		got := Window(at(tt.now))
		assert.True(t, got.Equal(at(tt.want)), "Window(%s) = %s, want %s", tt.now, got, tt.want)
	}
}

func TestGenerate_KnownVector(t *testing.T) {
	e := NewEngine(testKey)

	assert.Equal(t, "xk_PXlAED", e.Generate(at("2024-05-01T10:00:00Z"), "R1"))
	assert.Equal(t, "6R7ocQTXT", e.Generate(at("2024-05-01T11:00:00Z"), "R1"))
}

func TestGenerate_SameWindowSameCode(t *testing.T) {
	e := NewEngine(testKey)
	t1 := at("2024-05-01T10:00:01Z")
	t2 := at("2024-05-01T10:59:59.999Z")

	for i := 0; i < 20; i++ {
		room := fmt.Sprintf("room-%d", i)
		c1 := e.Generate(Window(t1), room)
		assert.Len(t, c1, CodeLength)
		assert.Equal(t, c1, e.Generate(Window(t2), room))
	}
}

func TestGenerate_DistinctRooms(t *testing.T) {
	e := NewEngine(testKey)
	w := Window(at("2024-05-01T10:15:00Z"))

	seen := make(map[string]string)
	for i := 0; i < 500; i++ {
		room := fmt.Sprintf("room-%d", i)
		code := e.Generate(w, room)
		if prev, ok := seen[code]; ok {
			t.Fatalf("rooms %s and %s share code %s", prev, room, code)
		}
		seen[code] = room
	}
}

func TestGenerate_DependsOnKey(t *testing.T) {
	w := Window(at("2024-05-01T10:15:00Z"))
	assert.NotEqual(t, NewEngine("a").Generate(w, "R1"), NewEngine("b").Generate(w, "R1"))
}

func TestVerify_RoundTrip(t *testing.T) {
	e := NewEngine(testKey)
	for _, now := range []string{"2024-01-01T00:00:00Z", "2024-05-01T10:42:00Z", "2030-12-31T23:59:59Z"} {
		w := Window(at(now))
		for _, room := range []string{"R1", "a-much-longer-room-identifier", ""} {
			assert.True(t, e.Verify(e.Generate(w, room), w, room), "round trip for %s/%q", now, room)
		}
	}
}

func TestVerify_Rejects(t *testing.T) {
	e := NewEngine(testKey)
	w := Window(at("2024-05-01T10:15:00Z"))
	code := e.Generate(w, "R1")

	tests := []struct {
		name string
		code string
		room string
	}{
		{"wrong code", "wrong", "R1"},
		{"empty code", "", "R1"},
		{"other room", code, "R2"},
		{"prefix of code", code[:CodeLength-1], "R1"},
		{"code with suffix", code + "x", "R1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, e.Verify(tt.code, w, tt.room))
		})
	}
}

// Codes issued seconds before the top of the hour stop working at the hour.
func TestVerify_HourBoundary(t *testing.T) {
	e := NewEngine(testKey)
	issued := e.Generate(Window(at("2024-05-01T10:59:59Z")), "R1")

	assert.True(t, e.Verify(issued, Window(at("2024-05-01T10:59:59.999Z")), "R1"))
	assert.False(t, e.Verify(issued, Window(at("2024-05-01T11:00:00Z")), "R1"))
}

func TestRemainingValiditySeconds(t *testing.T) {
	tests := []struct {
		now  string
		want int
	}{
		{"2024-05-01T10:00:00Z", 3599},
		{"2024-05-01T10:30:00Z", 1799},
		{"2024-05-01T10:59:58.5Z", 1},
		{"2024-05-01T10:59:59.5Z", 0},
		{"2024-05-01T10:59:59.999Z", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RemainingValiditySeconds(at(tt.now)), "now=%s", tt.now)
	}
}
