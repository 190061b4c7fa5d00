// 版权所有 2024 OllamaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 fallback 提供降级协调器：把熔断器、两级缓存与有界请求队列编排为
单一的 Execute 入口，在后端失败或熔断时逐级降级而不是向调用方抛错。

# 控制流

	调用方 -> Execute -> [熔断器把关] -> 执行器
	  成功: 写缓存 + RecordSuccess + 异步触发队列排空 -> {success, source: live}
	  失败/被拒: RecordFailure -> 缓存查找 -> 入队 -> 模板化拒绝通知

# 结果契约

Execute 从不返回原始错误：每种出路都是带标签的 Outcome。收到
Queued 结果的调用方需另行等待 Handle 获知请求的最终结果——队列排空
的处理结果或条目自身的超时。

# 面向用户的通知

五种降级场景的通知模板见 Templates，占位符 {response}、{position}
的替换契约必须保持。原始错误文本永远不会进入通知。
*/
package fallback
