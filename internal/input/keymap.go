package input

// keyNames maps the platform-independent key codes carried on the wire
// (spec §4.8 "Key is a platform-independent key code") to the symbolic
// xdotool key names the Linux backend passes on. Letters A-Z map to their
// lowercase letter; any other unknown code maps to the character with that
// code point.
var keyNames = map[uint32]string{
	0x08: "BackSpace",
	0x09: "Tab",
	0x0D: "Return",
	0x1B: "Escape",
	0x20: "space",
	0x25: "Left",
	0x26: "Up",
	0x27: "Right",
	0x28: "Down",
	0x2E: "Delete",
}

func keyName(key uint32) string {
	if name, ok := keyNames[key]; ok {
		return name
	}
	if key >= 'A' && key <= 'Z' {
		return string(rune(key + 32)) // xdotool wants lowercase letter names
	}
	return string(rune(key))
}
