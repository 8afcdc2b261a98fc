package xenv

// Reset 重置全局状态（仅用于测试）
func Reset() {
	globalMu.Lock()
	global.Store(nil)
	globalMu.Unlock()
}
