// Package eventbus dispatches in-process events to handlers selected by
// their parameter types. A handler is a func whose parameters match the
// published arguments, optionally preceded by a context.Context.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrNoSubscribers        = errors.New("eventbus: no matching subscribers")
	ErrInvalidHandler       = errors.New("eventbus: handler must be a function")
	ErrInvalidHandlerReturn = errors.New("eventbus: invalid handler return signature")
)

type EventBus interface {
	Publish(ctx context.Context, args ...any)
	PublishE(ctx context.Context, args ...any) error
	Subscribe(handler any)
	SubscribersCount() int
	Clear()
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

type subscriber struct {
	fn      reflect.Value
	withCtx bool
}

type publisher struct {
	log  logrus.FieldLogger
	mu   sync.RWMutex
	subs []subscriber
}

func NewEventPublisher(log logrus.FieldLogger) EventBus {
	return &publisher{log: log}
}

// MatchSignature reports whether handler accepts args, ignoring a leading
// context.Context parameter.
func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		return false
	}
	offset := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		offset = 1
	}
	if t.NumIn()-offset != len(args) {
		return false
	}
	for i, arg := range args {
		param := t.In(i + offset)
		if arg == nil {
			if param.Kind() != reflect.Interface && param.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		if !reflect.TypeOf(arg).AssignableTo(param) {
			return false
		}
	}
	return true
}

func (p *publisher) Subscribe(handler any) {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		panic(ErrInvalidHandler)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, subscriber{
		fn:      reflect.ValueOf(handler),
		withCtx: t.NumIn() > 0 && t.In(0) == contextType,
	})
}

func (p *publisher) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

func (p *publisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = nil
}

// Publish calls every matching handler and logs panics and returned errors.
func (p *publisher) Publish(ctx context.Context, args ...any) {
	err := p.PublishE(ctx, args...)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoSubscribers):
		if p.log != nil {
			p.log.Debugf("eventbus: no subscribers for %s", describeArgs(args))
		}
	default:
		if p.log != nil {
			p.log.WithError(err).Errorf("eventbus: handler failed for %s", describeArgs(args))
		}
	}
}

// PublishE calls every matching handler and joins their errors. Handlers
// may return nothing or a single error.
func (p *publisher) PublishE(ctx context.Context, args ...any) error {
	p.mu.RLock()
	subs := append([]subscriber(nil), p.subs...)
	p.mu.RUnlock()

	handled := false
	var errs []error
	for _, s := range subs {
		if !MatchSignature(s.fn.Interface(), args) {
			continue
		}
		handled = true
		if err := p.call(ctx, s, args); err != nil {
			errs = append(errs, err)
		}
	}
	if !handled {
		return ErrNoSubscribers
	}
	return errors.Join(errs...)
}

func (p *publisher) call(ctx context.Context, s subscriber, args []any) (err error) {
	name := s.fn.Type().String()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: handler %s panicked: %v", name, r)
		}
	}()

	in := make([]reflect.Value, 0, len(args)+1)
	if s.withCtx {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}
	for _, arg := range args {
		if arg == nil {
			in = append(in, reflect.Zero(s.fn.Type().In(len(in))))
			continue
		}
		in = append(in, reflect.ValueOf(arg))
	}

	out := s.fn.Call(in)
	switch {
	case len(out) == 0:
		return nil
	case len(out) == 1 && out[0].Type() == errorType:
		if out[0].IsNil() {
			return nil
		}
		return out[0].Interface().(error)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidHandlerReturn, name)
	}
}

func describeArgs(args []any) string {
	types := make([]string, len(args))
	for i, a := range args {
		types[i] = fmt.Sprintf("%T", a)
	}
	return fmt.Sprint(types)
}
