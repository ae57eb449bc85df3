package icon

import (
	"testing"

	"github.com/reels-cli/reels/key"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func TestGet(t *testing.T) {
	Convey("Given every registered icon", t, func() {
		defer viper.Set(key.IconsVariant, "plain")

		Convey("It renders in each variant", func() {
			for _, variant := range AvailableVariants() {
				viper.Set(key.IconsVariant, variant)
				for i := range icons {
					So(Get(i), ShouldNotBeEmpty)
				}
			}
		})

		Convey("It renders nothing for an unknown variant", func() {
			viper.Set(key.IconsVariant, "")
			So(Get(Play), ShouldBeEmpty)
		})

		Convey("Unknown icons render nothing", func() {
			viper.Set(key.IconsVariant, "plain")
			So(Get(Icon(-1)), ShouldBeEmpty)
		})
	})
}
