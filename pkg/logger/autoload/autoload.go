// Package autoload initializes the global logger from the LOG_* environment
// on import. Blank-import it from main.
package autoload

import (
	configx "github.com/merrysway/coffeebot/pkg/config"
	logx "github.com/merrysway/coffeebot/pkg/logger"
)

func init() {
	logx.Init(*configx.MustLoad[logx.Config]("LOG"))
}
