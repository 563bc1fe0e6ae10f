package input

import (
	"testing"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/focusfollows/internal/window"
)

func TestPointerEvents(t *testing.T) {
	now := time.Unix(1700000000, 0)
	left := uint16(xproto.KeyButMaskButton1)
	right := uint16(xproto.KeyButMaskButton3)
	shift := uint16(xproto.KeyButMaskShift)

	type want struct {
		kind   Kind
		button Button
	}

	tests := []struct {
		name string
		last pointerSample
		cur  pointerSample
		want []want
	}{
		{
			name: "no change",
			last: pointerSample{X: 10, Y: 10},
			cur:  pointerSample{X: 10, Y: 10},
		},
		{
			name: "move only",
			last: pointerSample{X: 10, Y: 10},
			cur:  pointerSample{X: 11, Y: 10},
			want: []want{{kind: Move}},
		},
		{
			name: "press in place",
			last: pointerSample{X: 10, Y: 10},
			cur:  pointerSample{X: 10, Y: 10, Mask: left},
			want: []want{{ButtonDown, ButtonLeft}},
		},
		{
			name: "release in place",
			last: pointerSample{X: 10, Y: 10, Mask: left},
			cur:  pointerSample{X: 10, Y: 10},
			want: []want{{ButtonUp, ButtonLeft}},
		},
		{
			name: "press before move",
			last: pointerSample{X: 10, Y: 10},
			cur:  pointerSample{X: 40, Y: 2, Mask: right},
			want: []want{{ButtonDown, ButtonRight}, {kind: Move}},
		},
		{
			name: "release and press in button order",
			last: pointerSample{X: 10, Y: 10, Mask: right},
			cur:  pointerSample{X: 10, Y: 12, Mask: left},
			want: []want{{ButtonDown, ButtonLeft}, {ButtonUp, ButtonRight}, {kind: Move}},
		},
		{
			name: "held button while moving",
			last: pointerSample{X: 10, Y: 10, Mask: left},
			cur:  pointerSample{X: 20, Y: 10, Mask: left},
			want: []want{{kind: Move}},
		},
		{
			name: "modifier keys are ignored",
			last: pointerSample{X: 10, Y: 10},
			cur:  pointerSample{X: 10, Y: 10, Mask: shift},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pointerEvents(tt.last, tt.cur, now)
			if len(got) != len(tt.want) {
				t.Fatalf("pointerEvents() = %+v, want %d events", got, len(tt.want))
			}
			pt := window.Point{X: int(tt.cur.X), Y: int(tt.cur.Y)}
			for i, ev := range got {
				if ev.Kind != tt.want[i].kind || ev.Button != tt.want[i].button {
					t.Errorf("event %d = %s button %d, want %s button %d",
						i, ev.Kind, ev.Button, tt.want[i].kind, tt.want[i].button)
				}
				if ev.Point != pt || !ev.Time.Equal(now) {
					t.Errorf("event %d at %v %v, want %v %v", i, ev.Point, ev.Time, pt, now)
				}
			}
		})
	}
}
