package models

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var resultMessagesZH = map[ResultStatus]string{
	Success:                               "操作已成功完成.",
	ErrorAlreadyLoaded:                    "要求负载的装载机已加载.",
	ErrorNotImplemented:                   "该操作未实现.",
	ErrorNotInitialized:                   "装载机是不正确初始化.",
	ErrorBadNPDMHeader:                    "该NPDM文件有一个坏头.",
	ErrorBadACIDHeader:                    "该NPDM有坏ACID头.",
	ErrorBadACIHeader:                     "该NPDM有坏ACI头.",
	ErrorBadFileAccessControl:             "该NPDM文件有一个错误的文件访问控制.",
	ErrorBadFileAccessHeader:              "该NPDM有一个错误的文件访问头.",
	ErrorBadKernelCapabilityDescriptors:   "该NPDM有错误的内核能力描述符.",
	ErrorBadPFSHeader:                     "该PFS / HFS分区有一个坏头.",
	ErrorIncorrectPFSFileSize:             "该PFS / HFS分区具有由报头确定尺寸不正确.",
	ErrorBadNCAHeader:                     "该NCA文件有一个坏头.",
	ErrorMissingProductionKeyFile:         "一般的密钥文件找不到.",
	ErrorMissingHeaderKey:                 "该NCA标题key密钥无法找到.",
	ErrorIncorrectHeaderKey:               "该NCA标题密钥不正确或标头无效.",
	ErrorNCA2:                             "对于NCA2型种NCA支持未实现.",
	ErrorNCA0:                             "对于NCA0型种NCA支持未实现.",
	ErrorMissingTitlekey:                  "此权利ID的标题键找不到.",
	ErrorMissingTitlekek:                  "这个加密修订标题KEK找不到.",
	ErrorInvalidRightsID:                  "标头中的版权ID无效.",
	ErrorMissingKeyAreaKey:                "此应用程序类型和加密版本的关键领域重点找不到.",
	ErrorIncorrectKeyAreaKey:              "关键区域的关键是不正确或部分标题是无效的.",
	ErrorIncorrectTitlekeyOrTitlekek:      "该标题键和/或标题KEK不正确或节头是无效.",
	ErrorXCIMissingProgramNCA:             "该XCI文件缺少计划型NCA.",
	ErrorNCANotProgram:                    "该NCA文件不是应用程序.",
	ErrorNoExeFS:                          "该ExeFS分区无法找到.",
	ErrorBadXCIHeader:                     "该XCI文件有一个坏头.",
	ErrorXCIMissingPartition:              "该XCI文件丢失分区.",
	ErrorNullFile:                         "文件无法找到或不存在.",
	ErrorMissingNPDM:                      "本场比赛缺少程序元数据文件（main.npdm）.",
	Error32BitISA:                         "游戏采用当前未实现32位架构.",
	ErrorUnableToParseKernelMetadata:      "无法加载模拟过程时完全解析内核元",
	ErrorNoRomFS:                          "该ROMFS找不到.",
	ErrorIncorrectELFFileSize:             "ELF文件具有通过标题来确定尺寸不正确.",
	ErrorLoadingNRO:                       "有一个普遍的错误装载NRO到模拟存储器.",
	ErrorLoadingNSO:                       "有一个普遍的错误装载NSO到模拟存储器.",
	ErrorNoIcon:                           "没有可用图标.",
	ErrorNoControl:                        "没有控制数据可用.",
	ErrorBadNAXHeader:                     "该NAX文件有一个坏头.",
	ErrorIncorrectNAXFileSize:             "该NAX文件具有由报头确定尺寸不正确.",
	ErrorNAXKeyHMACFailed:                 "该HMAC所产生的NAX解密密钥失败.",
	ErrorNAXValidationHMACFailed:          "该HMAC验证失败NAX解密密钥.",
	ErrorNAXKeyDerivationFailed:           "该NAX密钥推导失败.",
	ErrorNAXInconvertibleToNCA:            "该NAX文件不能被解释为NCA文件.",
	ErrorBadNAXFilePath:                   "该NAX文件有一个不正确的路径.",
	ErrorMissingSDSeed:                    "在SD种子无法找到或派生.",
	ErrorMissingSDKEKSource:               "该SD KEK来源找不到.",
	ErrorMissingAESKEKGenerationSource:    "该AES KEK生成源找不到.",
	ErrorMissingAESKeyGenerationSource:    "AES密钥生成源找不到.",
	ErrorMissingSDSaveKeySource:           "该SD保存项来源找不到.",
	ErrorMissingSDNCAKeySource:            "该SD NCA重点税源找不到.",
	ErrorNSPMissingProgramNCA:             "该NSP文件缺少计划型NCA.",
	ErrorBadBKTRHeader:                    "将在BKTR型NCA有一个不好的头在BKTR.",
	ErrorBKTRSubsectionNotAfterRelocation: "将在BKTR分段项不搬迁入境后立即设.",
	ErrorBKTRSubsectionNotAtEnd:           "将在BKTR分段项不是在媒体块的结束.",
	ErrorBadRelocationBlock:               "将在BKTR型NCA有坏块重定位.",
	ErrorBadSubsectionBlock:               "将在BKTR型NCA有坏块分段.",
	ErrorBadRelocationBuckets:             "将在BKTR型NCA有一个不好的搬迁桶.",
	ErrorBadSubsectionBuckets:             "将在BKTR型NCA有一个不好的分段桶.",
	ErrorMissingBKTRBaseRomFS:             "该bktr型NCA缺少碱ROMFS.",
	ErrorNoPackedUpdate:                   "该NSP或XCI不包含的更新除了基本游戏.",
	ErrorBadKIPHeader:                     "该KIP文件中有一个坏头.",
	ErrorBLZDecompressionFailed:           "该部分的KIP BLZ解压意外失败.",
	ErrorBadINIHeader:                     "该 INI 文件中有一个坏头.",
	ErrorINITooManyKIPs:                   "该 INI 文件包含比KIP文件的最大允许数量更多.",
}

var (
	resultLanguages = []language.Tag{language.English, language.SimplifiedChinese}
	resultMatcher   = language.NewMatcher(resultLanguages)
	resultCatalog   *catalog.Builder
)

func init() {
	checkMessageTable("zh-Hans", resultMessagesZH)
	resultCatalog = catalog.NewBuilder(catalog.Fallback(language.English))
	for s, msg := range resultMessages {
		if err := resultCatalog.SetString(language.English, msg, msg); err != nil {
			panic(err)
		}
		if err := resultCatalog.SetString(language.SimplifiedChinese, msg, resultMessagesZH[s]); err != nil {
			panic(err)
		}
	}
}

// MatchLanguage resolves a user language preference against the languages
// status messages are available in.
func MatchLanguage(pref string) language.Tag {
	tag, err := language.Parse(pref)
	if err != nil {
		return language.English
	}
	_, i, _ := resultMatcher.Match(tag)
	return resultLanguages[i]
}

// LocalizedMessage returns the diagnostic text for s in the closest
// available language to tag.
func (s ResultStatus) LocalizedMessage(tag language.Tag) string {
	key := s.Message()
	_, i, _ := resultMatcher.Match(tag)
	p := message.NewPrinter(resultLanguages[i], message.Catalog(resultCatalog))
	return p.Sprintf(key)
}
