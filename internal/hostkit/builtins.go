package hostkit

import "fmt"

func init() {
	Register(Builtin{Meta: Meta{ID: Echo, Name: "echo"}, Call: echoBuiltin})
	Register(Builtin{Meta: Meta{ID: Print, Name: "print"}, Call: printBuiltin})
	Register(Builtin{Meta: Meta{ID: Len, Name: "len"}, Call: lenBuiltin})
	Register(Builtin{Meta: Meta{ID: TypeOf, Name: "typeOf"}, Call: typeOfBuiltin})
}

// echoBuiltin returns its parameters unchanged, letting a test observe
// exactly what the interpreter evaluated and passed through.
func echoBuiltin(params, env map[string]any) (any, error) {
	return params, nil
}

func printBuiltin(params, env map[string]any) (any, error) {
	fmt.Println(params["text"])
	return nil, nil
}

func lenBuiltin(params, env map[string]any) (any, error) {
	switch v := params["value"].(type) {
	case string:
		return float64(len(v)), nil
	case []any:
		return float64(len(v)), nil
	case map[string]any:
		return float64(len(v)), nil
	case nil:
		return float64(0), nil
	default:
		return nil, fmt.Errorf("hostkit: len: unsupported type %T", v)
	}
}

func typeOfBuiltin(params, env map[string]any) (any, error) {
	return fmt.Sprintf("%T", params["value"]), nil
}
