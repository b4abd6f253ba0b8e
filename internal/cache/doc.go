// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package cache 封装 go-redis 客户端，为补全缓存提供带前缀、带过期时间的
JSON 键值存储。

Manager 在构造时 Ping 一次 Redis，连接失败直接返回错误，由调用方决定是否
在没有缓存的情况下继续。读到无法解码的值按未命中处理（ErrCacheMiss），
关闭后的所有操作返回 ErrClosed。

*Manager 满足 llm/cache.Store 接口。
*/
package cache
