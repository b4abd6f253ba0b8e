// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
包 artifacts 从已完成的对话记录中提取类型化产物。

# 概述

对话结束后，编排层需要从自由文本中取出某个 Agent 产出的代码或评审
意见。本包提供两个纯函数，只读输入，不修改对话记录，重复调用结果一致。

# 主要能力

  - ExtractCode：收集指定 Agent 所有消息中的三反引号代码块
    （开头行可带语言标记），按记录顺序以空行连接
  - ExtractReview：收集指定 Agent 所有消息的完整内容，按顺序以空行连接
  - CodeBlocks：返回单条消息内的代码块及其语言标记

未匹配时返回 Found == false 的 Artifact，其 Text 为 NoCodeFound 或
NoReviewFound，调用方据此区分"不存在"与"空字符串"。
*/
package artifacts
