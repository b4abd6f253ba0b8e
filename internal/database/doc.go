// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package database 提供基于 GORM 的数据库打开与连接池管理。

Open 按驱动名（sqlite / postgres / mysql）选择 Dialector，打开数据库后
交给 PoolManager 统一配置连接池、后台探活与事务执行。运行历史
（workflow/history）通过 PoolManager.DB() 获取 GORM 实例。
*/
package database
