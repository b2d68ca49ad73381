package control

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/eiannone/keyboard"
	"github.com/sirupsen/logrus"
)

// Key is a terminal key: either a printable rune or a special key.
type Key struct {
	Char rune
	Code keyboard.Key
}

var namedKeys = map[string]keyboard.Key{
	"up":        keyboard.KeyArrowUp,
	"down":      keyboard.KeyArrowDown,
	"left":      keyboard.KeyArrowLeft,
	"right":     keyboard.KeyArrowRight,
	"enter":     keyboard.KeyEnter,
	"space":     keyboard.KeySpace,
	"tab":       keyboard.KeyTab,
	"backspace": keyboard.KeyBackspace2,
	"home":      keyboard.KeyHome,
	"end":       keyboard.KeyEnd,
	"pgup":      keyboard.KeyPgup,
	"pgdn":      keyboard.KeyPgdn,
	"f1":        keyboard.KeyF1,
	"f2":        keyboard.KeyF2,
}

// ParseKey accepts a key name from namedKeys or a single character.
func ParseKey(s string) (Key, error) {
	if code, ok := namedKeys[strings.ToLower(s)]; ok {
		return Key{Code: code}, nil
	}
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		return Key{Char: r}, nil
	}
	return Key{}, fmt.Errorf("unknown key %q", s)
}

// DefaultKeymap binds the arrows to the direction buttons.
func DefaultKeymap() map[Key]Button {
	return map[Key]Button{
		{Code: keyboard.KeyArrowUp}:    Up,
		{Code: keyboard.KeyArrowDown}:  Down,
		{Code: keyboard.KeyArrowLeft}:  Left,
		{Code: keyboard.KeyArrowRight}: Right,
		{Code: keyboard.KeyHome}:       Home,
		{Char: 'h'}:                    Home,
		{Code: keyboard.KeyTab}:        Menu,
		{Char: 'm'}:                    Menu,
		{Code: keyboard.KeyBackspace}:  Back,
		{Code: keyboard.KeyBackspace2}: Back,
		{Char: 'b'}:                    Back,
		{Code: keyboard.KeyEnter}:      OK,
		{Code: keyboard.KeySpace}:      OK,
		{Char: '+'}:                    VolUp,
		{Char: '='}:                    VolUp,
		{Char: '-'}:                    VolDown,
		{Char: 'p'}:                    Power,
	}
}

// Keymap builds a keymap from DefaultKeymap with the bindings overridden
// (button name -> key name).
func Keymap(bindings map[string]string) (map[Key]Button, error) {
	km := DefaultKeymap()
	for name, keyName := range bindings {
		b, ok := ParseButton(name)
		if !ok {
			return nil, fmt.Errorf("unknown button %q", name)
		}
		k, err := ParseKey(keyName)
		if err != nil {
			return nil, fmt.Errorf("button %s: %w", name, err)
		}
		for old, ob := range km {
			if ob == b {
				delete(km, old)
			}
		}
		km[k] = b
	}
	return km, nil
}

// KeyboardButtons reads the terminal in raw mode. Esc, Ctrl-C and q close
// the Quit channel.
type KeyboardButtons struct {
	*EventButtons
	keymap map[Key]Button
	quit   chan struct{}
	log    logrus.FieldLogger

	closeOnce sync.Once
	quitOnce  sync.Once
}

// OpenKeyboard puts the terminal into raw mode and starts reading keys.
func OpenKeyboard(keymap map[Key]Button, log logrus.FieldLogger) (*KeyboardButtons, error) {
	if keymap == nil {
		keymap = DefaultKeymap()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := keyboard.Open(); err != nil {
		return nil, fmt.Errorf("open keyboard: %w", err)
	}
	k := &KeyboardButtons{
		EventButtons: NewEventButtons(0),
		keymap:       keymap,
		quit:         make(chan struct{}),
		log:          log.WithField("component", "keyboard"),
	}
	go k.read()
	return k, nil
}

// Quit is closed once a quit key is read.
func (k *KeyboardButtons) Quit() <-chan struct{} { return k.quit }

func (k *KeyboardButtons) read() {
	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			k.log.WithError(err).Debug("keyboard closed")
			return
		}
		if key == keyboard.KeyEsc || key == keyboard.KeyCtrlC || char == 'q' || char == 'Q' {
			k.quitOnce.Do(func() { close(k.quit) })
			continue
		}
		var id Key
		if key != 0 {
			id = Key{Code: key}
		} else {
			id = Key{Char: char}
		}
		if b, ok := k.keymap[id]; ok {
			k.Press(b)
		}
	}
}

// Close restores the terminal.
func (k *KeyboardButtons) Close() error {
	var err error
	k.closeOnce.Do(func() {
		err = keyboard.Close()
	})
	return err
}
