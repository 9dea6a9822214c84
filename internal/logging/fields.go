package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// LifecycleFields 提供控制器生命周期日志（install/activate/message/fetch）的公共字段。
func LifecycleFields(phase, cacheName, version string) logrus.Fields {
	return logrus.Fields{
		"action":  "worker_" + phase,
		"cache":   cacheName,
		"version": version,
	}
}

// RequestFields 提供策略/来源/版本字段，供代理请求日志复用。
func RequestFields(requestID, strategy, source, version string, status int) logrus.Fields {
	return logrus.Fields{
		"action":     "proxy",
		"request_id": requestID,
		"strategy":   strategy,
		"source":     source,
		"version":    version,
		"status":     status,
	}
}
