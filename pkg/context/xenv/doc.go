// Package xenv 提供进程级环境信息：部署标识与构建信息。
//
// 这些值在进程生命周期内不变，由 [Init] 从环境变量读取一次，
// 之后通过 [DeploymentID]、[Build] 无锁读取。
//
// # 环境变量
//
//	DEPLOYMENT_ID   部署标识，可选；设置后随每个响应和出站请求传递
//	GIT_COMMIT      提交哈希，默认 "unknown"
//	GIT_BRANCH      分支名，默认 "unknown"
//	BUILD_DATE      构建时间，默认 "unknown"
//	APP_VERSION     版本号，默认 "0.1.0"
//
// # 使用方式
//
//	func main() {
//	    xenv.MustInit()
//	    fmt.Println(xenv.Build().ShortCommit())
//	}
//
// 未初始化时 DeploymentID 返回空字符串，Build 返回全部为默认值的 BuildInfo。
package xenv
