package proxycodec

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/dop251/goja"
)

// Script is a codec defined by an Ultraviolet style config script, e.g.
//
//	self.__uv$config = {
//	    prefix: '/service/',
//	    encodeUrl: Ultraviolet.codec.xor.encode,
//	    decodeUrl: Ultraviolet.codec.xor.decode,
//	};
//
// The built-in xor, plain and base64 codecs are exposed to the script as
// Ultraviolet.codec.*. Calls are serialized; a goja runtime is not safe for
// concurrent use.
type Script struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	prefix string
	encode goja.Callable
	decode goja.Callable
}

var builtins = map[string]struct {
	enc func(string) string
	dec func(string) (string, error)
}{
	"xor":    {xorEncode, xorDecode},
	"plain":  {plainEncode, plainDecode},
	"base64": {base64Encode, base64Decode},
}

// NewScript evaluates src. origin populates the script's location object.
func NewScript(src, origin string) (*Script, error) {
	if src == "" {
		return nil, fmt.Errorf("codec script is empty")
	}

	s := &Script{vm: goja.New()}
	if err := s.registerGlobals(origin); err != nil {
		return nil, err
	}

	if _, err := s.vm.RunString(src); err != nil {
		return nil, fmt.Errorf("codec script: %w", err)
	}

	v := s.vm.Get("__uv$config")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, fmt.Errorf("codec script: __uv$config is not defined")
	}
	cfg := v.ToObject(s.vm)

	if p := cfg.Get("prefix"); p != nil && !goja.IsUndefined(p) {
		s.prefix = p.String()
	} else {
		s.prefix = DefaultPrefix
	}

	enc, ok := goja.AssertFunction(cfg.Get("encodeUrl"))
	if !ok {
		return nil, fmt.Errorf("codec script: encodeUrl is not a function")
	}
	s.encode = enc
	if dec, ok := goja.AssertFunction(cfg.Get("decodeUrl")); ok {
		s.decode = dec
	}
	return s, nil
}

func (s *Script) registerGlobals(origin string) error {
	vm := s.vm
	global := vm.GlobalObject()
	for _, name := range []string{"self", "window", "globalThis"} {
		if err := vm.Set(name, global); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}

	loc := vm.NewObject()
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		_ = loc.Set("origin", u.Scheme+"://"+u.Host)
		_ = loc.Set("protocol", u.Scheme+":")
		_ = loc.Set("host", u.Host)
		_ = loc.Set("hostname", u.Hostname())
		_ = loc.Set("href", origin)
	}
	if err := vm.Set("location", loc); err != nil {
		return fmt.Errorf("set location: %w", err)
	}

	codec := vm.NewObject()
	for name, b := range builtins {
		b := b
		o := vm.NewObject()
		_ = o.Set("encode", func(call goja.FunctionCall) goja.Value {
			arg := call.Argument(0)
			if goja.IsUndefined(arg) || goja.IsNull(arg) {
				return arg
			}
			return vm.ToValue(b.enc(arg.String()))
		})
		_ = o.Set("decode", func(call goja.FunctionCall) goja.Value {
			arg := call.Argument(0)
			if goja.IsUndefined(arg) || goja.IsNull(arg) {
				return arg
			}
			out, err := b.dec(arg.String())
			if err != nil {
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(out)
		})
		if err := codec.Set(name, o); err != nil {
			return fmt.Errorf("set codec %s: %w", name, err)
		}
	}
	uv := vm.NewObject()
	_ = uv.Set("codec", codec)
	return vm.Set("Ultraviolet", uv)
}

func (s *Script) Prefix() string { return s.prefix }

func (s *Script) EncodeURL(raw string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.encode(goja.Undefined(), s.vm.ToValue(raw))
	if err != nil {
		return "", fmt.Errorf("encodeUrl: %w", err)
	}
	return v.String(), nil
}

func (s *Script) DecodeURL(encoded string) (string, error) {
	if s.decode == nil {
		return "", ErrNoDecoder
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.decode(goja.Undefined(), s.vm.ToValue(encoded))
	if err != nil {
		return "", fmt.Errorf("decodeUrl: %w", err)
	}
	return v.String(), nil
}
