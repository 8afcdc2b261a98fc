// Package xrotate 为日志文件提供按大小轮转的写入器。
//
// 底层使用 gopkg.in/natefinch/lumberjack.v2，对外只暴露 [Rotator] 接口，
// 可直接作为 xlog 的输出目标：
//
//	logger, cleanup, err := xlog.New().
//	    SetRotation("/var/log/app/app.log", xrotate.WithMaxSize(100)).
//	    Build()
//	defer cleanup()
package xrotate
