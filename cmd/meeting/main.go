package main

import (
	"flag"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/service"
	"github.com/zeromicro/go-zero/rest"

	"live_meeting/internal/config"
	"live_meeting/internal/handler"
	"live_meeting/internal/svc"
)

var configFile = flag.String("f", "etc/meeting.yaml", "the config file")

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)

	svcCtx, err := svc.NewServiceContext(c)
	logx.Must(err)

	server := rest.MustNewServer(c.RestConf)
	handler.RegisterHandlers(server, svcCtx)

	group := service.NewServiceGroup()
	defer group.Stop()
	group.Add(server)
	group.Add(svcCtx.Worker.Service())

	logx.Infof("Starting server at %s:%d...", c.Host, c.Port)
	group.Start()
}
