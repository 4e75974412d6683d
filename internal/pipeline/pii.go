package pipeline

import "regexp"

// residentIDPattern 匹配 주민등록번호 形状：6 位生日 + 连字符 + 7 位序号，
// 中间可能被 OCR 识别为空格。
var residentIDPattern = regexp.MustCompile(`\d{6}[\s-]?\d{7}`)

// honorificNamePattern 匹配"姓名+敬语后缀"的常见组合（선생님/학생/군/양），
// OCR 抽取的提示词已要求模型自行清除姓名字段，这里是一道纵深防御的第二遍
// 扫描，兜底模型未能完全遵从指令的情形。
var honorificNamePattern = regexp.MustCompile(`[가-힣]{2,4}\s?(선생님|학생|군|양)`)

const redactionToken = "[개인정보 삭제됨]"

// elidePII 对已由模型清除过一遍个人识别信息的分块正文做第二遍正则扫描，
// 兜底残留的주민등록번호和敬语姓名组合。这是纵深防御，不是主要机制——
// 主要机制是 §4.4 的提示词契约本身。
func elidePII(text string) string {
	text = residentIDPattern.ReplaceAllString(text, redactionToken)
	text = honorificNamePattern.ReplaceAllString(text, redactionToken)
	return text
}
