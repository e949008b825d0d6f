package deployer

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrConstructorArity indicates the argument count does not match the
// constructor signature. Always a user error, never silently ignored.
var ErrConstructorArity = errors.New("constructor argument count mismatch")

// EncodeConstructorArgs ABI-encodes positional constructor arguments.
// Values arrive as strings (or nested []any for array parameters) and
// are coerced to the constructor's declared types.
func EncodeConstructorArgs(abiJSON []byte, args []any) ([]byte, error) {
	parsed, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return nil, fmt.Errorf("parsing ABI: %w", err)
	}

	inputs := parsed.Constructor.Inputs
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("%w: constructor takes %d argument(s), got %d",
			ErrConstructorArity, len(inputs), len(args))
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	values := make([]any, len(inputs))
	for i, input := range inputs {
		v, err := coerceArg(input.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s %s): %w", i, input.Type, input.Name, err)
		}
		values[i] = v
	}

	// Pack with an empty method name encodes constructor arguments.
	encoded, err := parsed.Pack("", values...)
	if err != nil {
		return nil, fmt.Errorf("encoding constructor arguments: %w", err)
	}
	return encoded, nil
}

func coerceArg(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.SliceTy:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", v)
		}
		slice := reflect.MakeSlice(t.GetType(), len(items), len(items))
		for i, item := range items {
			ev, err := coerceArg(*t.Elem, item)
			if err != nil {
				return nil, err
			}
			slice.Index(i).Set(reflect.ValueOf(ev))
		}
		return slice.Interface(), nil

	case abi.ArrayTy:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", v)
		}
		if len(items) != t.Size {
			return nil, fmt.Errorf("expected %d-element array, got %d", t.Size, len(items))
		}
		arr := reflect.New(t.GetType()).Elem()
		for i, item := range items {
			ev, err := coerceArg(*t.Elem, item)
			if err != nil {
				return nil, err
			}
			arr.Index(i).Set(reflect.ValueOf(ev))
		}
		return arr.Interface(), nil

	case abi.UintTy, abi.IntTy:
		s := fmt.Sprint(v)
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		rt := t.GetType()
		if rt == reflect.TypeOf(&big.Int{}) {
			return n, nil
		}
		rv := reflect.New(rt).Elem()
		if t.T == abi.UintTy {
			if !n.IsUint64() {
				return nil, fmt.Errorf("integer %q out of range for %s", s, t)
			}
			rv.SetUint(n.Uint64())
		} else {
			if !n.IsInt64() {
				return nil, fmt.Errorf("integer %q out of range for %s", s, t)
			}
			rv.SetInt(n.Int64())
		}
		return rv.Interface(), nil

	case abi.AddressTy:
		s := fmt.Sprint(v)
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil

	case abi.BoolTy:
		switch b := v.(type) {
		case bool:
			return b, nil
		default:
			parsed, err := strconv.ParseBool(fmt.Sprint(v))
			if err != nil {
				return nil, fmt.Errorf("invalid bool %q", fmt.Sprint(v))
			}
			return parsed, nil
		}

	case abi.StringTy:
		return fmt.Sprint(v), nil

	case abi.BytesTy:
		b, err := hexutil.Decode(fmt.Sprint(v))
		if err != nil {
			return nil, fmt.Errorf("invalid bytes value: %v", err)
		}
		return b, nil

	case abi.FixedBytesTy:
		b, err := hexutil.Decode(fmt.Sprint(v))
		if err != nil {
			return nil, fmt.Errorf("invalid bytes value: %v", err)
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil

	default:
		return nil, fmt.Errorf("unsupported constructor parameter type %s", t)
	}
}
