package prelude

import (
	_ "tilepipe/pkg/driver/prelude"
	_ "tilepipe/pkg/provider/source/local"
	_ "tilepipe/pkg/provider/source/remote"
)
