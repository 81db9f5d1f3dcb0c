package main

import (
	"tilepipe/cmd/tilepipe/driver"
	"tilepipe/cmd/tilepipe/layers"
	"tilepipe/cmd/tilepipe/mosaic"
	"tilepipe/cmd/tilepipe/process"
	"tilepipe/cmd/tilepipe/publish"
	"tilepipe/cmd/tilepipe/serve"
	"tilepipe/cmd/tilepipe/tiles"
	"tilepipe/cmd/tilepipe/warp"
)

func init() {
	Registry.FromGetter(warp.GetCommand)
	Registry.FromGetter(tiles.GetCommand)
	Registry.FromGetter(process.GetCommand)
	Registry.FromGetter(serve.GetCommand)
	Registry.FromGetter(layers.GetCommand)
	Registry.FromGetter(mosaic.GetCommand)
	Registry.FromGetter(publish.GetCommand)
	Registry.FromGetter(driver.GetCommand)
}
