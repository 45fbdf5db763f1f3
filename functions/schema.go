package functions

import "google.golang.org/genai"

// Declare builds a function declaration with an object parameter schema.
// A nil props map declares a function without parameters.
func Declare(name, description string, props map[string]*genai.Schema, required ...string) *genai.FunctionDeclaration {
	decl := &genai.FunctionDeclaration{
		Name:        name,
		Description: description,
	}
	if props != nil {
		decl.Parameters = &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   required,
		}
	}
	return decl
}

// StringParam describes a string parameter
func StringParam(description string, enum ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description, Enum: enum}
}

// IntParam describes an integer parameter
func IntParam(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Description: description}
}

// StringListParam describes a list-of-strings parameter
func StringListParam(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: description,
		Items:       &genai.Schema{Type: genai.TypeString},
	}
}

// BoolParam describes a boolean parameter
func BoolParam(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeBoolean, Description: description}
}
