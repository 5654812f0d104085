// Package main 启动应用程序
package main

import "github.com/yeisme/depovault/pkg/cmd"

//	@title			DepoVault API
//	@version		1.0
//	@description	DepoVault 是一个研究数据存缴服务：提交元数据与文件、发布为带版本的不可变记录，并异步向 DataCite 注册 DOI。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
