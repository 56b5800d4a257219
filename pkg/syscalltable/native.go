package syscalltable

import "runtime"

// nativeArch is GOARCH at build time, used to select the default table.
var nativeArch = runtime.GOARCH
