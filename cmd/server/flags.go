package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlags привязывает флаги к ключам viper, чтобы флаг перекрывал окружение и файл.
func bindFlags(v *viper.Viper, lookup func(string) *pflag.Flag, keys map[string]string) {
	for key, name := range keys {
		if f := lookup(name); f != nil {
			// Ошибка возможна только при nil-флаге
			_ = v.BindPFlag(key, f)
		}
	}
}
