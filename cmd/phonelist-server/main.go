package main

import (
	"github.com/sirupsen/logrus"

	"github.com/code-payments/phonelist-server/pkg/app"
)

func main() {
	a := newPhoneListApp(WithEnvConfigs())
	if err := app.Run(a, a.serverOptions()...); err != nil {
		logrus.WithError(err).Fatal("error running phone list server")
	}
}
