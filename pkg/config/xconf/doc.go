// Package xconf 加载服务设置：环境变量为基础，配置文件可选覆盖，并支持热重载。
//
// # 来源与优先级
//
// LoadSettings 只读取环境变量（基于 envconfig）：
//
//	ENVIRONMENT    运行环境，默认 development
//	DEBUG          调试模式，默认 false
//	LOG_LEVEL      日志级别，默认 INFO
//	LOG_FORMAT     日志格式 json/text，默认 json
//	LOG_FILE       日志文件路径，为空时输出到 stderr
//	SERVICE_NAME   服务名
//	SERVICE_SHORT  嵌入 trace ID 的服务短名，为空时取服务名前 4 个字符
//	SKIP_PATHS     不记录生命周期日志的路径，逗号分隔
//	LOG_REQUESTS   是否记录请求日志，默认 true
//
// 文件（YAML/JSON，基于 koanf）通过 Settings.Apply 覆盖环境变量的值，
// 只有文件中出现的 key 才会覆盖。
//
// # 热重载
//
// Watch 基于 fsnotify 监视配置文件所在目录（兼容编辑器的原子写入），
// 变更经防抖后调用 Reload 并通知回调。Watcher.Run 阻塞直到 ctx 取消，
// 不额外启动 goroutine。
package xconf
