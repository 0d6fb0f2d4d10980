package shell

import "os"

type Environment struct{}

func NewEnvironment() *Environment {
	return &Environment{}
}

func (this *Environment) LookupEnv(key string) (value string, set bool) {
	return os.LookupEnv(key)
}

// StaticEnvironment answers lookups from a fixed set of values.
type StaticEnvironment map[string]string

func (this StaticEnvironment) LookupEnv(key string) (value string, set bool) {
	value, set = this[key]
	return value, set
}
