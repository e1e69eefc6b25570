package window

import "fmt"

// Key is a keyboard key. Values match GLFW key codes, which use ASCII for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
type Key int

const (
	KeyB     Key = 66 // B key (ASCII)
	KeyE     Key = 69 // E key (ASCII)
	KeyH     Key = 72 // H key (ASCII)
	KeyP     Key = 80 // P key (ASCII)
	KeyR     Key = 82 // R key (ASCII)
	KeyS     Key = 83 // S key (ASCII)
	KeyT     Key = 84 // T key (ASCII)
	KeySpace Key = 32 // Spacebar (ASCII)
	KeyEsc   Key = 256
)

// String returns the printable character for ASCII keys and the numeric code otherwise.
func (k Key) String() string {
	switch {
	case k == KeySpace:
		return "space"
	case k == KeyEsc:
		return "escape"
	case k > 32 && k < 127:
		return string(rune(k))
	default:
		return fmt.Sprintf("key(%d)", int(k))
	}
}
