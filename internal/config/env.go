package config

import (
	"github.com/spf13/viper"
)

const EnvPrefix = "PATCHER"

// NewViper returns a viper instance reading PATCHER_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// Override replaces connection settings with any values set in v, whether
// from flags or the environment.
func (p *Patcher) Override(v *viper.Viper) {
	if s := v.GetString("database"); s != "" {
		p.Database.ConnectionString = s
	}
	if s := v.GetString("addr"); s != "" {
		p.Server.Addr = s
	}
}
