// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaults() {
	viper.SetDefault("debug", false)

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.port", "8020")

	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "voteapi.db")
	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.username", "voteapi")
	viper.SetDefault("database.mysql.password", "voteapi")
	viper.SetDefault("database.mysql.database", "voteapi")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("abuse.maxfingerprintsperip", 5)
	viper.SetDefault("abuse.maxipsperfingerprint", 3)
	viper.SetDefault("abuse.fingerprintwindow", time.Hour)
	viper.SetDefault("abuse.ipwindow", 24*time.Hour)

	viper.SetDefault("voting.elokfactor", 32.0)
	viper.SetDefault("voting.eloinitialrating", 1500.0)

	viper.SetDefault("log.enabled", false)
	viper.SetDefault("log.path", "voteapi.log")
	viper.SetDefault("log.maxsize", 100)
	viper.SetDefault("log.maxbackups", 3)
	viper.SetDefault("log.maxage", 28)

	viper.SetDefault("telemetry.enabled", false)

	viper.SetDefault("data.dir", "data")
}
