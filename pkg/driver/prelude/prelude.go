// Package prelude registers every built-in driver provider.
package prelude

import (
	_ "tilepipe/pkg/driver/exec/native"
	_ "tilepipe/pkg/driver/fetchurl/fetchurl"
	_ "tilepipe/pkg/driver/httpclient/native"
	_ "tilepipe/pkg/driver/rasterinfo/gdalinfo"
	_ "tilepipe/pkg/driver/tiler/gdal2tiles"
	_ "tilepipe/pkg/driver/warper/gdalwarp"
)
