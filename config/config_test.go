package config

import (
	"testing"

	"github.com/reels-cli/reels/filesystem"
	"github.com/reels-cli/reels/key"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestSetup(t *testing.T) {
	Convey("Config Setup", t, func() {
		Convey("Should initialize without error", func() {
			So(Setup(), ShouldBeNil)
		})

		Convey("Should have default values populated", func() {
			So(Setup(), ShouldBeNil)
			for name := range Default {
				So(viper.Get(name), ShouldNotBeNil)
			}
			So(viper.GetInt(key.PlayerRetryLimit), ShouldEqual, 6)
			So(viper.GetString(key.NetworkProbe), ShouldEqual, "auto")
		})

		Convey("Environment variables override defaults", func() {
			t.Setenv("REELS_PLAYER_RETRY_LIMIT", "2")
			So(Setup(), ShouldBeNil)
			So(viper.GetInt(key.PlayerRetryLimit), ShouldEqual, 2)
		})

		Convey("EnvKeyReplacer should convert dots to underscores", func() {
			So(EnvKeyReplacer.Replace("player.native_hls"), ShouldEqual, "player_native_hls")
		})
	})
}

func TestField(t *testing.T) {
	Convey("Given a registered field", t, func() {
		field := Default[key.NetworkDownlink]

		Convey("Env is prefixed once", func() {
			So(field.Env(), ShouldEqual, "REELS_NETWORK_DOWNLINK")
		})

		Convey("typeName reports floats", func() {
			So(field.typeName(), ShouldEqual, "float")
		})

		Convey("Pretty shows the default only when the value differs", func() {
			So(Setup(), ShouldBeNil)
			So(field.Pretty(), ShouldContainSubstring, key.NetworkDownlink)
			So(field.Pretty(), ShouldNotContainSubstring, "default")

			viper.Set(key.NetworkDownlink, 2.5)
			So(field.Pretty(), ShouldContainSubstring, "default")
			So(field.Pretty(), ShouldContainSubstring, "2.5")
		})
	})
}
