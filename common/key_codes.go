package common

// Virtual key codes for the input command bindings (core/input). Letters,
// digits and space use their ASCII values, which coincide with the Win32
// virtual-key codes for those keys; punctuation keys use their ASCII
// values; function, modifier, backspace and escape keys use GLFW's
// numbering. This system never owns a keyboard reader itself — it only
// binds commands to key codes the host hands it.
const (
	KeyW         = 87  // W key (ASCII)
	KeyA         = 65  // A key (ASCII)
	KeyS         = 83  // S key (ASCII)
	KeyD         = 68  // D key (ASCII)
	KeyQ         = 81  // Q key (ASCII)
	KeyE         = 69  // E key (ASCII)
	KeyB         = 66  // B key (ASCII)
	KeyC         = 67  // C key (ASCII)
	KeyF         = 70  // F key (ASCII)
	KeyG         = 71  // G key (ASCII)
	KeyL         = 76  // L key (ASCII)
	KeyM         = 77  // M key (ASCII)
	KeyT         = 84  // T key (ASCII)
	KeyV         = 86  // V key (ASCII)
	KeyX         = 88  // X key (ASCII)
	KeySpace     = 32  // Spacebar (ASCII)
	KeyBackspace = 259 // Backspace key (GLFW)
	KeyEsc       = 256 // Escape key (GLFW)

	Key0 = 48 // 0 key (ASCII)
	Key1 = 49 // 1 key (ASCII)
	Key2 = 50 // 2 key (ASCII)
	Key3 = 51 // 3 key (ASCII)
	Key4 = 52 // 4 key (ASCII)
	Key5 = 53 // 5 key (ASCII)
	Key6 = 54 // 6 key (ASCII)
	Key7 = 55 // 7 key (ASCII)
	Key8 = 56 // 8 key (ASCII)
	Key9 = 57 // 9 key (ASCII)
)

// Additional non-printable keys
const (
	KeyLeftShift  = 340 // Left Shift (GLFW)
	KeyRightShift = 344 // Right Shift (GLFW)
	KeyLeftAlt    = 342 // Left Alt (GLFW), the modifier the fkey/punct profiles require held
)

// Function keys, used by the "fkey" input profile.
const (
	KeyF1 = 290
	KeyF2 = 291
	KeyF3 = 292
	KeyF4 = 293
	KeyF5 = 294
	KeyF6 = 295
	KeyF7 = 296
)

// Punctuation keys, used by the "punct" input profile.
const (
	KeyLeftBracket  = 91 // '[' (ASCII)
	KeyRightBracket = 93 // ']' (ASCII)
	KeySemicolon    = 59 // ';' (ASCII)
	KeyApostrophe   = 39 // '\'' (ASCII)
	KeyComma        = 44 // ',' (ASCII)
	KeyPeriod       = 46 // '.' (ASCII)
	KeySlash        = 47 // '/' (ASCII)
)
